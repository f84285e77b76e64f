package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong phone or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidRole        = errors.New("auth: role must be worker or employer")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrSessionRevoked     = errors.New("auth: session revoked")
	// ErrForbidden signals an authenticated caller acting on someone else's data.
	ErrForbidden = errors.New("auth: forbidden")
)

const DefaultSessionTTL = 24 * time.Hour

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Service issues, verifies and revokes sessions.
type Service struct {
	creds     CredentialStore
	revoked   RevocationStore
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

// LoginResult bundles the signed token and the session it encodes.
type LoginResult struct {
	Token   string
	Session Session
}

func NewService(creds CredentialStore, revoked RevocationStore, jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	return &Service{
		creds:     creds,
		revoked:   revoked,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.newID = gen
	return s
}

// Login checks the password against the stored bcrypt hash and issues a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if _, err := ParseRole(string(req.Role)); err != nil {
		return LoginResult{}, err
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	cred, err := s.creds.GetCredential(ctx, req.Role, phone)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC().Truncate(time.Second)
	session := Session{
		ID:        s.newID(),
		Subject:   cred.ID,
		Role:      cred.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := s.sign(session)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return LoginResult{Token: token, Session: session}, nil
}

// Verify parses a bearer token and rejects expired or revoked sessions.
func (s *Service) Verify(ctx context.Context, token string) (Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.ID == "" || c.Subject == "" {
		return Session{}, ErrInvalidToken
	}
	if _, err := ParseRole(string(c.Role)); err != nil {
		return Session{}, ErrInvalidToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, ErrSessionRevoked
	}

	session := Session{ID: c.ID, Subject: c.Subject, Role: c.Role, ExpiresAt: c.ExpiresAt.Time.UTC()}
	if c.IssuedAt != nil {
		session.IssuedAt = c.IssuedAt.Time.UTC()
	}
	return session, nil
}

// Logout revokes the session until its natural expiry.
func (s *Service) Logout(ctx context.Context, session Session) error {
	return s.revoked.Revoke(ctx, session.ID, session.ExpiresAt)
}

func (s *Service) sign(session Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Subject,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	return token.SignedString(s.jwtSecret)
}
