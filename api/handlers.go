package api

import (
	"strconv"

	"gigmatch/auth"
	"gigmatch/job"

	"github.com/gofiber/fiber/v2"
)

func (h *handler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return err
	}
	res, err := h.svc.Auth.Login(c.UserContext(), auth.LoginRequest{Phone: req.Phone, Password: req.Password, Role: role})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "logged in", sessionResponse{
		Token:     res.Token,
		SessionID: res.Session.ID,
		Subject:   res.Session.Subject,
		Role:      res.Session.Role,
		ExpiresAt: res.Session.ExpiresAt,
	})
}

func (h *handler) logout(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	if err := h.svc.Auth.Logout(c.UserContext(), s); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "logged out", nil)
}

func (h *handler) registerWorker(c *fiber.Ctx) error {
	var req registerWorkerRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}
	w, err := h.svc.Profiles.RegisterWorker(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "worker registered", workerFrom(w))
}

func (h *handler) getWorker(c *fiber.Ctx) error {
	w, err := h.svc.Profiles.GetWorker(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "worker", workerFrom(w))
}

func (h *handler) updateWorker(c *fiber.Ctx) error {
	if _, err := requireSelf(c, auth.RoleWorker); err != nil {
		return err
	}
	var req updateWorkerRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	upd, err := req.toUpdate()
	if err != nil {
		return err
	}
	w, err := h.svc.Profiles.UpdateWorker(c.UserContext(), c.Params("id"), upd)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "worker updated", workerFrom(w))
}

func (h *handler) recommendJobs(c *fiber.Ctx) error {
	if _, err := requireSelf(c, auth.RoleWorker); err != nil {
		return err
	}
	matches, err := h.svc.Matching.RecommendJobs(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "recommended jobs", matchesFrom(matches))
}

// explainScore is open to the worker themself and to employers.
func (h *handler) explainScore(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	if s.Role == auth.RoleWorker && s.Subject != c.Params("id") {
		return auth.ErrForbidden
	}
	b, err := h.svc.Matching.Explain(c.UserContext(), c.Params("id"), c.Params("jobId"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "match score", breakdownFrom(b))
}

func (h *handler) workerApplications(c *fiber.Ctx) error {
	if _, err := requireSelf(c, auth.RoleWorker); err != nil {
		return err
	}
	apps, err := h.svc.Jobs.ListWorkerApplications(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "applications", applicationsFrom(apps))
}

func (h *handler) registerEmployer(c *fiber.Ctx) error {
	var req registerEmployerRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}
	e, err := h.svc.Profiles.RegisterEmployer(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "employer registered", employerFrom(e))
}

func (h *handler) getEmployer(c *fiber.Ctx) error {
	e, err := h.svc.Profiles.GetEmployer(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "employer", employerFrom(e))
}

func (h *handler) listJobs(c *fiber.Ctx) error {
	filter := job.Filter{EmployerID: c.Query("employerId")}
	switch st := job.Status(c.Query("status")); st {
	case "", job.StatusOpen, job.StatusInProgress, job.StatusCompleted:
		filter.Status = st
	default:
		return badRequest("status", "must be open, in-progress or completed")
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest("limit", "must be a positive integer")
		}
		filter.Limit = n
	}
	jobs, err := h.svc.Jobs.ListJobs(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "jobs", jobsFrom(jobs))
}

func (h *handler) postJob(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	var req postJobRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}
	j, err := h.svc.Jobs.PostJob(c.UserContext(), s.Subject, in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "job posted", jobFrom(j))
}

func (h *handler) getJob(c *fiber.Ctx) error {
	j, err := h.svc.Jobs.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "job", jobFrom(j))
}

func (h *handler) apply(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	app, err := h.svc.Jobs.Apply(c.UserContext(), c.Params("id"), s.Subject)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "application submitted", applicationFrom(app))
}

func (h *handler) jobApplications(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	apps, err := h.svc.Jobs.ListApplications(c.UserContext(), c.Params("id"), s.Subject)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "applications", applicationsFrom(apps))
}

func (h *handler) updateApplicationStatus(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	var req statusRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if req.Status == "" {
		return badRequest("status", "is required")
	}
	to, err := job.ParseApplicationStatus(req.Status)
	if err != nil {
		return err
	}
	app, err := h.svc.Jobs.UpdateApplicationStatus(c.UserContext(), job.UpdateStatusParams{
		JobID:         c.Params("id"),
		ApplicationID: c.Params("appId"),
		EmployerID:    s.Subject,
		To:            to,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "application updated", applicationFrom(app))
}

func (h *handler) recordPayment(c *fiber.Ctx) error {
	s, _ := sessionFrom(c)
	var req paymentRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	app, err := h.svc.Jobs.RecordPayment(c.UserContext(), job.PaymentParams{
		JobID:         c.Params("id"),
		ApplicationID: c.Params("appId"),
		EmployerID:    s.Subject,
		Amount:        req.Amount,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "payment recorded", applicationFrom(app))
}
