package models

import "time"

// ActivityKind classifies a recorded account event.
type ActivityKind string

const (
	ActivityLogin          ActivityKind = "LOGIN"
	ActivityLogout         ActivityKind = "LOGOUT"
	ActivityPasswordChange ActivityKind = "PASSWORD_CHANGE"
	ActivitySignup         ActivityKind = "SIGNUP"
)

// Activity is an append-only audit row tied to a user.
type Activity struct {
	ID        int64
	UserID    int64
	Kind      ActivityKind
	Detail    string
	CreatedAt time.Time
}
