package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// killEvery is how often a kill is considered; each tick kills with
// probability 1/killOdds.
const (
	killEvery = 2 * time.Second
	killOdds  = 5
)

// TerminateRandomBackend periodically kills one backend whose application_name
// matches appLike, forcing the services through reconnects mid-transaction.
// The stress pool tags its connections "gigmatch-stress" (infra.ApplyMigrations),
// so passing that name limits kills to the services under test and leaves
// other sessions on a shared database alone. An empty appLike matches every
// backend.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, appLike string, stop <-chan struct{}) {
	if appLike == "" {
		appLike = "%"
	}
	ticker := time.NewTicker(killEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(killOdds) != 0 {
				continue
			}
			// the kill may land on a connection this pool was about to use
			_ = terminateOne(ctx, pool, appLike)
		}
	}
}

func terminateOne(ctx context.Context, pool *pgxpool.Pool, appLike string) error {
	_, err := pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
		WHERE datname = current_database()
		  AND pid <> pg_backend_pid()
		  AND application_name LIKE $1
		ORDER BY random() LIMIT 1`, appLike)
	return err
}
