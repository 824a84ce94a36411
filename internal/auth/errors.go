package auth

import "errors"

var (
	// ErrInvalidCredentials is returned on unknown email or password
	// mismatch. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended is returned for SUSPENDED accounts.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountDeleted is returned for soft-deleted accounts.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrTokenInvalid covers malformed, expired, bad-signature and
	// superseded tokens. Callers never learn which.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUserNotFound is returned when a user id resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned on signup with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNicknameTaken is returned on signup or update with an
	// existing nickname.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrVerificationCode is returned when an email verification code
	// is unknown, mismatched or expired.
	ErrVerificationCode = errors.New("invalid verification code")
	// ErrPasswordMismatch is returned when the current password check
	// fails on change/verify.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrNotSocialAccount is returned when set-password is used on a
	// regular account.
	ErrNotSocialAccount = errors.New("not a social account")
)
