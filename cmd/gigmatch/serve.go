package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigmatch/api"
	"gigmatch/auth"
	"gigmatch/config"
	"gigmatch/db"
	"gigmatch/job"
	"gigmatch/logging"
	"gigmatch/matching"
	"gigmatch/notify"
	"gigmatch/outbox"
	"gigmatch/profile"
	"gigmatch/scheduler"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Require(config.KeyDatabaseURL, config.KeyJWTSecret); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	_ = opts.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.JSON, cfg.Debug)
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{MaxConns: cfg.Database.MaxConns, ApplicationName: app})
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	} else {
		logger.Warn("redis not configured: sessions are revoked in memory and events are not published")
	}

	engine := newEngine(cfg)
	writer := outbox.NewWriter()
	profiles := profile.NewService(pool, profile.NewRepository(pool), engine, writer)
	jobs := job.NewService(pool, job.NewRepository(pool), matching.NewGate(profiles), writer)
	matcher := matching.NewService(engine, profiles, jobs)

	sender, err := newSender(cfg.SMS, logger)
	if err != nil {
		return err
	}
	sms := notify.NewSMSNotifier(sender, logger)
	alerter := matching.NewJobAlerter(engine, profiles, jobs, sender, logger).
		WithThreshold(cfg.Alerts.Threshold).
		WithLimit(cfg.Alerts.Limit)

	router := notify.NewRouter(logger).
		Route(sms, sms.Topics()...).
		Route(alerter, outbox.TopicJobPosted)
	var revoked auth.RevocationStore = auth.NewMemoryRevocationStore()
	if rdb != nil {
		router.Observe(notify.NewRedisPublisher(rdb, notify.DefaultChannel))
		revoked = auth.NewRedisRevocationStore(rdb)
	}

	relay := outbox.NewRelay(pool, outbox.NewStore(), router, logger).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxAttempts(cfg.Outbox.MaxAttempts)

	sched := scheduler.New(logger)
	if err := sched.Add(scheduler.TaskRelay, cfg.Scheduler.RelaySpec, scheduler.RelayTask(relay, logger)); err != nil {
		return err
	}
	if err := sched.Add(scheduler.TaskReminders, cfg.Scheduler.ReminderSpec, scheduler.ReminderTask(jobs, cfg.Reminder.Window, logger)); err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()
	// drain what a previous process left undelivered before taking traffic;
	// failures are logged by the scheduler and retried on the next tick
	_ = sched.Trigger(scheduler.TaskRelay)

	authSvc := auth.NewService(auth.NewCredentialStore(pool), revoked, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	server := api.New(api.Services{
		Auth:     authSvc,
		Profiles: profiles,
		Jobs:     jobs,
		Matching: matcher,
	}, api.Options{
		Logger:     logger,
		RateLimit:  cfg.HTTP.RateLimit,
		RateWindow: cfg.HTTP.RateWindow,
		LoginLimit: cfg.HTTP.LoginLimit,
		Dev:        cfg.Debug,
		AccessLog:  true,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting gigmatch", zap.String("version", version), zap.String("addr", cfg.HTTP.Addr))
		errCh <- server.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newSender returns the HTTP gateway, or a logging stand-in when no gateway is configured.
func newSender(cfg config.SMSConfig, logger *zap.Logger) (notify.Sender, error) {
	gw, err := notify.NewSMSGateway(notify.SMSConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Sender:  cfg.Sender,
		Timeout: cfg.Timeout,
	})
	if errors.Is(err, notify.ErrGatewayNotConfigured) {
		logger.Warn("sms gateway not configured: texts are only logged")
		return notify.NewLogSender(logger), nil
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}
