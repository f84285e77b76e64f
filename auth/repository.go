package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound signals that no profile with that phone and role exists.
var ErrUserNotFound = errors.New("auth: user not found")

// CredentialStore looks up login credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, role Role, phone string) (Credential, error)
}

// PGCredentialStore reads credentials from the workers and employers tables.
type PGCredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *PGCredentialStore {
	return &PGCredentialStore{pool: pool}
}

func (r *PGCredentialStore) GetCredential(ctx context.Context, role Role, phone string) (Credential, error) {
	var selectSQL string
	switch role {
	case RoleWorker:
		selectSQL = `SELECT id::text, password_hash FROM workers WHERE phone = $1`
	case RoleEmployer:
		selectSQL = `SELECT id::text, password_hash FROM employers WHERE phone = $1`
	default:
		return Credential{}, ErrInvalidRole
	}

	cred := Credential{Role: role}
	if err := r.pool.QueryRow(ctx, selectSQL, phone).Scan(&cred.ID, &cred.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrUserNotFound
		}
		return Credential{}, fmt.Errorf("auth: get credential: %w", err)
	}
	return cred, nil
}
