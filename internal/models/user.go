package models

import "time"

// Role is the coarse authorization role carried in access tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// Provider identifies the social identity provider an account is
// linked to, if any.
type Provider string

const (
	ProviderKakao  Provider = "KAKAO"
	ProviderNaver  Provider = "NAVER"
	ProviderGoogle Provider = "GOOGLE"
)

// User is the durable account record. The RefreshToken field holds the
// single active refresh token for the account; issuing a new one
// overwrites it, which structurally revokes the prior token.
type User struct {
	ID              int64
	Email           string
	PasswordHash    string
	Name            string
	Nickname        string
	Phone           string
	ProfileImageURL string
	Role            Role
	Status          Status
	Provider        Provider
	RefreshToken    string
	LastLoginAt     *time.Time
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == StatusActive
}
