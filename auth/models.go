package auth

import "time"

type Role string

const (
	RoleWorker   Role = "worker"
	RoleEmployer Role = "employer"
)

// ParseRole accepts the roles that can log in.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleWorker, RoleEmployer:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Credential is what login needs from a profile row.
type Credential struct {
	ID           string
	Role         Role
	PasswordHash string
}

// Session is an authenticated caller. It is issued at login, carried in the
// request context and ends on expiry or logout.
type Session struct {
	ID        string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Is reports whether the session belongs to the given profile.
func (s Session) Is(role Role, id string) bool {
	return s.Role == role && s.Subject == id
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Phone    string
	Password string
	Role     Role
}
