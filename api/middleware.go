package api

import (
	"context"
	"strings"
	"time"

	"gigmatch/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const sessionKey = "session"

// RateLimiter allows max requests per client IP in a sliding window.
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	if max == 0 {
		max = 50
	}
	if expiration == 0 {
		expiration = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(envelope{
				Message: "too many requests",
			})
		},
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}

// SessionVerifier resolves a bearer token to a live session.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (auth.Session, error)
}

// RequireSession rejects requests without a valid bearer token and stores the
// session in Locals.
func RequireSession(v SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return auth.ErrInvalidToken
		}
		session, err := v.Verify(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return err
		}
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

// RequireRole must run after RequireSession.
func RequireRole(role auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := sessionFrom(c)
		if !ok {
			return auth.ErrInvalidToken
		}
		if s.Role != role {
			return auth.ErrForbidden
		}
		return c.Next()
	}
}

func sessionFrom(c *fiber.Ctx) (auth.Session, bool) {
	s, ok := c.Locals(sessionKey).(auth.Session)
	return s, ok
}

// requireSelf checks that the caller is the profile named by the :id param.
func requireSelf(c *fiber.Ctx, role auth.Role) (auth.Session, error) {
	s, ok := sessionFrom(c)
	if !ok {
		return auth.Session{}, auth.ErrInvalidToken
	}
	if !s.Is(role, c.Params("id")) {
		return auth.Session{}, auth.ErrForbidden
	}
	return s, nil
}
