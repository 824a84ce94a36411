package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureSender records the last message instead of delivering it.
type captureSender struct {
	to, subject, body string
}

func (s *captureSender) Send(_ context.Context, to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return nil
}

func newTestVerifier(t *testing.T) (*Verifier, *captureSender, *fixture) {
	t.Helper()
	f := newFixture(t)
	sender := &captureSender{}
	return NewVerifier(f.store, sender, nil), sender, f
}

func codeFromBody(t *testing.T, body string) string {
	t.Helper()
	// Body shape: "Your verification code is NNNNNN. ..."
	const marker = "code is "
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0)
	start := i + len(marker)
	require.GreaterOrEqual(t, len(body), start+6)
	return body[start : start+6]
}

func TestVerificationFlow(t *testing.T) {
	v, sender, _ := newTestVerifier(t)
	ctx := context.Background()

	require.NoError(t, v.Request(ctx, "A@X.com"))
	require.Equal(t, "a@x.com", sender.to)

	code := codeFromBody(t, sender.body)
	require.Len(t, code, 6)

	require.NoError(t, v.Confirm(ctx, "a@x.com", code))

	ok, err := v.Verified(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	v.Consume(ctx, "a@x.com")
	ok, err = v.Verified(ctx, "a@x.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerificationWrongCode(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	ctx := context.Background()

	require.NoError(t, v.Request(ctx, "a@x.com"))
	require.ErrorIs(t, v.Confirm(ctx, "a@x.com", "000000"), ErrVerificationCode)
	require.ErrorIs(t, v.Confirm(ctx, "a@x.com", ""), ErrVerificationCode)
}

func TestVerificationCodeExpires(t *testing.T) {
	v, sender, f := newTestVerifier(t)
	ctx := context.Background()

	require.NoError(t, v.Request(ctx, "a@x.com"))
	code := codeFromBody(t, sender.body)

	f.mr.FastForward(11 * time.Minute)
	require.ErrorIs(t, v.Confirm(ctx, "a@x.com", code), ErrVerificationCode)
}

func TestVerificationCodeConsumedOnce(t *testing.T) {
	v, sender, _ := newTestVerifier(t)
	ctx := context.Background()

	require.NoError(t, v.Request(ctx, "a@x.com"))
	code := codeFromBody(t, sender.body)

	require.NoError(t, v.Confirm(ctx, "a@x.com", code))
	require.ErrorIs(t, v.Confirm(ctx, "a@x.com", code), ErrVerificationCode)
}

func TestSignUpRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	sender := &captureSender{}
	verifier := NewVerifier(f.store, sender, nil)

	svc := NewService(ServiceConfig{
		Users:      f.users,
		Activities: f.users,
		Codec:      f.codec,
		Sessions:   f.sessions,
		Inv:        NewInvalidator(f.sessions, nil),
		Verifier:   verifier,
		BcryptCost: 4,
	})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "P@ssw0rd1", Name: "A"})
	require.ErrorIs(t, err, ErrVerificationCode)

	require.NoError(t, verifier.Request(ctx, "a@x.com"))
	require.NoError(t, verifier.Confirm(ctx, "a@x.com", codeFromBody(t, sender.body)))

	u, err := svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "P@ssw0rd1", Name: "A"})
	require.NoError(t, err)
	require.True(t, u.EmailVerified)

	// The verified flag is single-use.
	ok, err := verifier.Verified(ctx, "a@x.com")
	require.NoError(t, err)
	require.False(t, ok)
}
