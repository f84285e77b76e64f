package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *fakeCredentialStore, *MemoryRevocationStore, *time.Time) {
	t.Helper()
	now := testNow
	clock := func() time.Time { return now }
	store := newFakeCredentialStore(t)
	revoked := NewMemoryRevocationStore().WithClock(clock)
	n := 0
	svc := NewService(store, revoked, "test-secret", time.Hour).
		WithClock(clock).
		WithIDGenerator(func() string { n++; return fmt.Sprintf("sid-%d", n) })
	return svc, store, revoked, &now
}

func TestService_LoginAndVerify(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginRequest{Phone: "+919800000001", Password: "secret1", Role: RoleWorker})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if res.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if res.Session.Subject != "worker-1" || res.Session.Role != RoleWorker || res.Session.ID != "sid-1" {
		t.Fatalf("login: unexpected session %+v", res.Session)
	}
	if !res.Session.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("login: expected expiry %v got %v", testNow.Add(time.Hour), res.Session.ExpiresAt)
	}

	session, err := svc.Verify(ctx, res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session != res.Session {
		t.Fatalf("verify: expected %+v got %+v", res.Session, session)
	}
	if !session.Is(RoleWorker, "worker-1") || session.Is(RoleEmployer, "worker-1") {
		t.Fatal("session ownership check wrong")
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	cases := map[string]LoginRequest{
		"unknown phone":  {Phone: "+910000000000", Password: "secret1", Role: RoleWorker},
		"wrong password": {Phone: "+919800000001", Password: "nope", Role: RoleWorker},
		"wrong role":     {Phone: "+919800000001", Password: "secret1", Role: RoleEmployer},
		"empty password": {Phone: "+919800000001", Role: RoleWorker},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), req); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Phone: "+919800000001", Password: "secret1", Role: "admin"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestService_StoreFailure(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.err = errors.New("db down")
	_, err := svc.Login(context.Background(), LoginRequest{Phone: "+919800000001", Password: "secret1", Role: RoleWorker})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}

func TestService_Logout(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginRequest{Phone: "+919800000002", Password: "secret2", Role: RoleEmployer})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, res.Session); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Verify(ctx, res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	// a fresh login is unaffected
	res2, _ := svc.Login(ctx, LoginRequest{Phone: "+919800000002", Password: "secret2", Role: RoleEmployer})
	if _, err := svc.Verify(ctx, res2.Token); err != nil {
		t.Fatalf("new session should verify, got %v", err)
	}
}

func TestService_VerifyRejects(t *testing.T) {
	svc, _, _, now := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Login(ctx, LoginRequest{Phone: "+919800000001", Password: "secret1", Role: RoleWorker})

	other := NewService(newFakeCredentialStore(t), nil, "other-secret", time.Hour).WithClock(func() time.Time { return *now })
	if _, err := other.Verify(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
	if _, err := svc.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "worker-1", "jti": "x", "role": "worker", "exp": now.Add(time.Hour).Unix()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.Verify(ctx, unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if _, err := svc.Verify(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestMemoryRevocationStore_Expiry(t *testing.T) {
	now := testNow
	s := NewMemoryRevocationStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = s.Revoke(ctx, "a", now.Add(time.Minute))
	_ = s.Revoke(ctx, "past", now.Add(-time.Minute))
	if ok, _ := s.IsRevoked(ctx, "a"); !ok {
		t.Fatal("expected revoked")
	}
	if ok, _ := s.IsRevoked(ctx, "past"); ok {
		t.Fatal("already expired session should not be stored")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := s.IsRevoked(ctx, "a"); ok {
		t.Fatal("revocation should lapse with the session")
	}
}

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.err == nil {
		f.keys[key] = ttl
	}
	return redis.NewStatusResult("OK", f.err)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func TestRedisRevocationStore(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}}
	s := NewRedisRevocationStore(rdb)
	s.now = func() time.Time { return testNow }
	ctx := context.Background()

	if err := s.Revoke(ctx, "sid-9", testNow.Add(30*time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ttl := rdb.keys[revokedKeyPrefix+"sid-9"]; ttl != 30*time.Minute {
		t.Fatalf("expected ttl to match remaining session life, got %v", ttl)
	}
	if ok, err := s.IsRevoked(ctx, "sid-9"); err != nil || !ok {
		t.Fatalf("expected revoked, got %v %v", ok, err)
	}
	if ok, _ := s.IsRevoked(ctx, "sid-1"); ok {
		t.Fatal("unexpected revocation")
	}

	rdb.err = errors.New("redis down")
	if _, err := s.IsRevoked(ctx, "sid-9"); err == nil {
		t.Fatal("expected redis error")
	}
}

type fakeCredentialStore struct {
	creds map[string]Credential
	err   error
}

func newFakeCredentialStore(t *testing.T) *fakeCredentialStore {
	t.Helper()
	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return string(h)
	}
	return &fakeCredentialStore{creds: map[string]Credential{
		string(RoleWorker) + ":+919800000001":   {ID: "worker-1", Role: RoleWorker, PasswordHash: hash("secret1")},
		string(RoleEmployer) + ":+919800000002": {ID: "employer-1", Role: RoleEmployer, PasswordHash: hash("secret2")},
	}}
}

func (f *fakeCredentialStore) GetCredential(_ context.Context, role Role, phone string) (Credential, error) {
	if f.err != nil {
		return Credential{}, f.err
	}
	c, ok := f.creds[string(role)+":"+phone]
	if !ok {
		return Credential{}, ErrUserNotFound
	}
	return c, nil
}
