package models

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Satisfies reports whether r grants at least the access of min.
func (r Role) Satisfies(min Role) bool {
	switch min {
	case RoleUser:
		return r == RoleUser || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username" validate:"required,username"`
	PasswordHash string `db:"password_hash" json:"-" validate:"required"`
	Role         Role   `db:"role" json:"role" validate:"required,oneof=admin user"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

func (u *User) Validate() error {
	return ValidateStruct(u)
}

// Session is the server-side state behind a login token.
type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
