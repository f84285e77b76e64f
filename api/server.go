// Package api exposes the marketplace over HTTP with fiber.
package api

import (
	"context"
	"errors"
	"time"

	"gigmatch/auth"
	"gigmatch/job"
	"gigmatch/matching"
	"gigmatch/profile"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type AuthService interface {
	SessionVerifier
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Logout(ctx context.Context, session auth.Session) error
}

type ProfileService interface {
	RegisterWorker(ctx context.Context, in profile.WorkerInput) (profile.Worker, error)
	UpdateWorker(ctx context.Context, id string, upd profile.WorkerUpdate) (profile.Worker, error)
	GetWorker(ctx context.Context, id string) (profile.Worker, error)
	RegisterEmployer(ctx context.Context, in profile.EmployerInput) (profile.Employer, error)
	GetEmployer(ctx context.Context, id string) (profile.Employer, error)
}

type JobService interface {
	PostJob(ctx context.Context, employerID string, in job.JobInput) (job.Job, error)
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListJobs(ctx context.Context, filter job.Filter) ([]job.Job, error)
	Apply(ctx context.Context, jobID, workerID string) (job.Application, error)
	UpdateApplicationStatus(ctx context.Context, params job.UpdateStatusParams) (job.Application, error)
	RecordPayment(ctx context.Context, params job.PaymentParams) (job.Application, error)
	ListApplications(ctx context.Context, jobID, employerID string) ([]job.Application, error)
	ListWorkerApplications(ctx context.Context, workerID string) ([]job.Application, error)
}

type MatchService interface {
	RecommendJobs(ctx context.Context, workerID string) ([]matching.Match, error)
	Explain(ctx context.Context, workerID, jobID string) (matching.Breakdown, error)
}

type Services struct {
	Auth     AuthService
	Profiles ProfileService
	Jobs     JobService
	Matching MatchService
}

type Options struct {
	Logger     *zap.Logger
	RateLimit  int
	RateWindow time.Duration
	LoginLimit int
	// Dev adds the underlying error to 5xx responses.
	Dev bool
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

type handler struct {
	svc    Services
	logger *zap.Logger
}

// New builds the fiber app with middleware and every route registered.
func New(svc Services, opts Options) *fiber.App {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("http")

	app := fiber.New(fiber.Config{
		AppName:               "gigmatch",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(lg, opts.Dev),
	})

	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New(recover.Config{EnableStackTrace: opts.Dev}))
	app.Use(cors.New(cors.Config{AllowOrigins: "*"}))
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(healthcheck.New())
	app.Use(RateLimiter(opts.RateLimit, opts.RateWindow))

	h := &handler{svc: svc, logger: lg}
	h.routes(app, opts)
	return app
}

func (h *handler) routes(app *fiber.App, opts Options) {
	session := RequireSession(h.svc.Auth)
	workerOnly := RequireRole(auth.RoleWorker)
	employerOnly := RequireRole(auth.RoleEmployer)

	app.Post("/auth/login", RateLimiter(opts.LoginLimit, opts.RateWindow), h.login)
	app.Post("/auth/logout", session, h.logout)

	app.Post("/workers", h.registerWorker)
	app.Get("/workers/:id", session, h.getWorker)
	app.Patch("/workers/:id", session, workerOnly, h.updateWorker)
	app.Get("/workers/:id/jobs", session, workerOnly, h.recommendJobs)
	app.Get("/workers/:id/jobs/:jobId/score", session, h.explainScore)
	app.Get("/workers/:id/applications", session, workerOnly, h.workerApplications)

	app.Post("/employers", h.registerEmployer)
	app.Get("/employers/:id", session, h.getEmployer)

	app.Get("/jobs", h.listJobs)
	app.Post("/jobs", session, employerOnly, h.postJob)
	app.Get("/jobs/:id", h.getJob)
	app.Post("/jobs/:id/apply", session, workerOnly, h.apply)
	app.Get("/jobs/:id/applications", session, employerOnly, h.jobApplications)
	app.Patch("/jobs/:id/applications/:appId", session, employerOnly, h.updateApplicationStatus)
	app.Post("/jobs/:id/applications/:appId/payment", session, employerOnly, h.recordPayment)
}

func errorHandler(lg *zap.Logger, dev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, msg := statusFor(err)
		body := envelope{Message: msg}
		if code >= fiber.StatusInternalServerError {
			lg.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			if dev {
				body.DevMessage = err.Error()
			}
		}
		var fe *fiber.Error
		if errors.As(err, &fe) && code == fiber.StatusNotFound {
			body.Message = "route not found"
		}
		return c.Status(code).JSON(body)
	}
}
