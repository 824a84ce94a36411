package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jchoi-dev/account-service/internal/models"
)

// Purpose constants distinguish access from refresh tokens in the
// custom claim. A refresh token presented where an access token is
// expected fails verification, and vice versa.
const (
	purposeAccess  = "access"
	purposeRefresh = "refresh"
)

// CodecConfig configures token issuance and verification. Instances
// are set once during initialization and treated as immutable.
type CodecConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// Codec signs and verifies the service's JWTs. HS256 only; the secret
// is shared between issuance and verification.
type Codec struct {
	config CodecConfig
}

// Claims is the full claim set carried by both token kinds. Refresh
// tokens leave Email and Role empty and carry only the subject.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// NewCodec validates the configuration and returns a ready Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Codec{config: cfg}, nil
}

// IssueAccess signs an access token carrying the user's id, email and
// role.
func (c *Codec) IssueAccess(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   u.Email,
		Role:    string(u.Role),
		Purpose: purposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

// IssueRefresh signs a refresh token carrying only the user's id. The
// uuid jti makes every issued refresh token distinct even within the
// same second.
func (c *Codec) IssueRefresh(userID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		Purpose: purposeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

// VerifyAccess parses and validates an access token.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.verify(token, purposeAccess)
}

// VerifyRefresh parses and validates a refresh token.
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return c.verify(token, purposeRefresh)
}

// verify collapses every failure mode (malformed, expired, bad
// signature, wrong purpose, empty input) to ErrTokenInvalid so callers
// cannot probe for the distinction.
func (c *Codec) verify(token, purpose string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Purpose != purpose {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// SubjectID parses the subject claim as the numeric user id.
func (cl *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }
