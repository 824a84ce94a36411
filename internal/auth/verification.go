package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/cache"
	"github.com/jchoi-dev/account-service/internal/mail"
)

const (
	verifyCodeTTL = 10 * time.Minute
	// A confirmed email stays eligible for signup for this long.
	verifiedFlagTTL = 30 * time.Minute

	keyPrefixVerifyCode = "auth:verify:code:"
	keyPrefixVerified   = "auth:verify:ok:"
)

// Verifier issues and checks email verification codes. Codes are
// six digits, live in the cache only, and expire after ten minutes.
// Unlike the session cache, verification state has no durable
// fallback, so cache unavailability surfaces as an error here.
type Verifier struct {
	store  cache.Store
	sender mail.Sender
	log    *zap.Logger
}

// NewVerifier wires the email verification flow.
func NewVerifier(store cache.Store, sender mail.Sender, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{store: store, sender: sender, log: log}
}

// Request generates a fresh code for the email, stores it, and sends
// it through the configured sender. A repeated request overwrites the
// previous code.
func (v *Verifier) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code, err := sixDigitCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := v.store.Set(ctx, keyPrefixVerifyCode+email, []byte(code), verifyCodeTTL); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	if err := v.sender.Send(ctx, email, "Email verification", body); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	v.log.Info("verification code issued", zap.String("email", email))
	return nil
}

// Confirm checks a presented code. On success the code is consumed
// and the email is flagged verified for a bounded window.
func (v *Verifier) Confirm(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	stored, err := v.store.Get(ctx, keyPrefixVerifyCode+email)
	if err != nil {
		return ErrVerificationCode
	}
	if code == "" || subtle.ConstantTimeCompare(stored, []byte(code)) != 1 {
		return ErrVerificationCode
	}
	if err := v.store.Set(ctx, keyPrefixVerified+email, []byte("1"), verifiedFlagTTL); err != nil {
		return fmt.Errorf("store verified flag: %w", err)
	}
	if err := v.store.Delete(ctx, keyPrefixVerifyCode+email); err != nil {
		v.log.Warn("verification code cleanup failed", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// Verified reports whether the email holds a live verified flag.
func (v *Verifier) Verified(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := v.store.Get(ctx, keyPrefixVerified+email)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		// Fail closed but distinguishably: signup cannot proceed
		// without the flag, and the caller should retry.
		return false, fmt.Errorf("read verified flag: %w", err)
	}
	return true, nil
}

// Consume drops the verified flag once signup has used it.
func (v *Verifier) Consume(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := v.store.Delete(ctx, keyPrefixVerified+email); err != nil {
		v.log.Warn("verified flag cleanup failed", zap.String("email", email), zap.Error(err))
	}
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
