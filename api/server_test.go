package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gigmatch/auth"
	"gigmatch/job"
	"gigmatch/matching"
	"gigmatch/profile"

	"github.com/gofiber/fiber/v2"
)

const (
	workerToken   = "worker-token"
	employerToken = "employer-token"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeAuth struct {
	loggedOut []string
	loginErr  error
}

func (f *fakeAuth) Verify(_ context.Context, token string) (auth.Session, error) {
	switch token {
	case workerToken:
		return auth.Session{ID: "s-w", Subject: "w1", Role: auth.RoleWorker, ExpiresAt: testNow.Add(time.Hour)}, nil
	case employerToken:
		return auth.Session{ID: "s-e", Subject: "e1", Role: auth.RoleEmployer, ExpiresAt: testNow.Add(time.Hour)}, nil
	}
	return auth.Session{}, auth.ErrInvalidToken
}

func (f *fakeAuth) Login(_ context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	if f.loginErr != nil {
		return auth.LoginResult{}, f.loginErr
	}
	return auth.LoginResult{
		Token:   workerToken,
		Session: auth.Session{ID: "s-w", Subject: "w1", Role: req.Role, ExpiresAt: testNow.Add(time.Hour)},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, s auth.Session) error {
	f.loggedOut = append(f.loggedOut, s.ID)
	return nil
}

type fakeProfiles struct {
	err      error
	lastIn   profile.WorkerInput
	lastUpd  profile.WorkerUpdate
	employer profile.EmployerInput
}

func (f *fakeProfiles) RegisterWorker(_ context.Context, in profile.WorkerInput) (profile.Worker, error) {
	f.lastIn = in
	if f.err != nil {
		return profile.Worker{}, f.err
	}
	return profile.Worker{ID: "w1", Name: in.Name, Age: in.Age, Phone: in.Phone, Skills: in.Skills, Location: in.Location, ShaktiScore: 59.25, IsAvailable: true}, nil
}

func (f *fakeProfiles) UpdateWorker(_ context.Context, id string, upd profile.WorkerUpdate) (profile.Worker, error) {
	f.lastUpd = upd
	if f.err != nil {
		return profile.Worker{}, f.err
	}
	return profile.Worker{ID: id, Age: *upd.Age}, nil
}

func (f *fakeProfiles) GetWorker(_ context.Context, id string) (profile.Worker, error) {
	if id != "w1" {
		return profile.Worker{}, profile.ErrWorkerNotFound
	}
	return profile.Worker{ID: "w1", Name: "Ravi"}, nil
}

func (f *fakeProfiles) RegisterEmployer(_ context.Context, in profile.EmployerInput) (profile.Employer, error) {
	f.employer = in
	if f.err != nil {
		return profile.Employer{}, f.err
	}
	return profile.Employer{ID: "e1", Name: in.Name, Phone: in.Phone, Company: in.Company}, nil
}

func (f *fakeProfiles) GetEmployer(_ context.Context, id string) (profile.Employer, error) {
	if id != "e1" {
		return profile.Employer{}, profile.ErrEmployerNotFound
	}
	return profile.Employer{ID: "e1", Name: "Asha"}, nil
}

type fakeJobs struct {
	err        error
	posted     job.JobInput
	postedBy   string
	applied    [2]string
	statusCall job.UpdateStatusParams
	payment    job.PaymentParams
	filter     job.Filter
}

func (f *fakeJobs) PostJob(_ context.Context, employerID string, in job.JobInput) (job.Job, error) {
	f.postedBy, f.posted = employerID, in
	if f.err != nil {
		return job.Job{}, f.err
	}
	return job.Job{ID: "j1", EmployerID: employerID, Title: in.Title, RequiredSkills: in.RequiredSkills, Status: job.StatusOpen}, nil
}

func (f *fakeJobs) GetJob(_ context.Context, id string) (job.Job, error) {
	if id != "j1" {
		return job.Job{}, job.ErrNotFound
	}
	return job.Job{ID: "j1", Title: "Wiring", Status: job.StatusOpen}, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, filter job.Filter) ([]job.Job, error) {
	f.filter = filter
	return []job.Job{{ID: "j1", Status: job.StatusOpen}}, f.err
}

func (f *fakeJobs) Apply(_ context.Context, jobID, workerID string) (job.Application, error) {
	f.applied = [2]string{jobID, workerID}
	if f.err != nil {
		return job.Application{}, f.err
	}
	return job.Application{ID: "a1", JobID: jobID, WorkerID: workerID, Status: job.ApplicationPending, PaymentStatus: job.PaymentUnpaid}, nil
}

func (f *fakeJobs) UpdateApplicationStatus(_ context.Context, p job.UpdateStatusParams) (job.Application, error) {
	f.statusCall = p
	if f.err != nil {
		return job.Application{}, f.err
	}
	return job.Application{ID: p.ApplicationID, JobID: p.JobID, Status: p.To}, nil
}

func (f *fakeJobs) RecordPayment(_ context.Context, p job.PaymentParams) (job.Application, error) {
	f.payment = p
	if f.err != nil {
		return job.Application{}, f.err
	}
	amount := p.Amount
	return job.Application{ID: p.ApplicationID, Status: job.ApplicationCompleted, PaymentStatus: job.PaymentPaid, PaymentAmount: &amount}, nil
}

func (f *fakeJobs) ListApplications(_ context.Context, jobID, employerID string) ([]job.Application, error) {
	if employerID != "e1" {
		return nil, job.ErrNotOwner
	}
	return []job.Application{{ID: "a1", JobID: jobID}}, nil
}

func (f *fakeJobs) ListWorkerApplications(_ context.Context, workerID string) ([]job.Application, error) {
	return []job.Application{{ID: "a1", WorkerID: workerID}}, nil
}

type fakeMatching struct{}

func (fakeMatching) RecommendJobs(_ context.Context, workerID string) ([]matching.Match, error) {
	return []matching.Match{
		{Job: job.Job{ID: "j1", Status: job.StatusOpen}, Score: 0.95},
		{Job: job.Job{ID: "j2", Status: job.StatusOpen}, Score: 0.4},
	}, nil
}

func (fakeMatching) Explain(_ context.Context, workerID, jobID string) (matching.Breakdown, error) {
	if jobID != "j1" {
		return matching.Breakdown{}, job.ErrNotFound
	}
	return matching.Breakdown{Score: 1, Eligible: true, Dimensions: []matching.Dimension{{Name: matching.DimSkills, Value: 1, Weight: 0.5}}}, nil
}

type testEnv struct {
	app      *fiber.App
	auth     *fakeAuth
	profiles *fakeProfiles
	jobs     *fakeJobs
}

func newEnv(opts Options) *testEnv {
	env := &testEnv{auth: &fakeAuth{}, profiles: &fakeProfiles{}, jobs: &fakeJobs{}}
	if opts.RateLimit == 0 {
		opts.RateLimit = 1000
	}
	if opts.LoginLimit == 0 {
		opts.LoginLimit = 1000
	}
	env.app = New(Services{Auth: env.auth, Profiles: env.profiles, Jobs: env.jobs, Matching: fakeMatching{}}, opts)
	return env
}

type result struct {
	code int
	body envelope
	raw  map[string]any
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) result {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	res := result{code: resp.StatusCode}
	_ = json.Unmarshal(data, &res.body)
	_ = json.Unmarshal(data, &res.raw)
	return res
}

func (r result) data(t *testing.T) map[string]any {
	t.Helper()
	d, ok := r.raw["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %v", r.raw)
	}
	return d
}

func expect(t *testing.T, r result, code int) {
	t.Helper()
	if r.code != code {
		t.Fatalf("expected status %d, got %d (%+v)", code, r.code, r.body)
	}
	if (code < 400) != r.body.Success {
		t.Fatalf("success flag %v does not match status %d", r.body.Success, code)
	}
}

const workerBody = `{"name":"Ravi","age":35,"phone":"+919800000001","password":"secret1",
	"skills":["electrical","electronics repair"],"experience":12,"languages":["hindi"],
	"location":{"address":"Delhi","coordinates":[77.209,28.6139]}}`

func TestRegisterWorker(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodPost, "/workers", "", workerBody)
	expect(t, res, fiber.StatusCreated)

	d := res.data(t)
	if d["id"] != "w1" || d["shaktiScore"] != 59.25 {
		t.Fatalf("unexpected worker %v", d)
	}
	in := env.profiles.lastIn
	if in.Age != 35 || in.Location.Point == nil || in.Location.Point.Lon != 77.209 || in.Location.Point.Lat != 28.6139 {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestRegisterWorker_BadRequests(t *testing.T) {
	cases := map[string]string{
		"unknown field":   `{"name":"Ravi","age":35,"phone":"+91980","password":"secret1","nickname":"R"}`,
		"missing age":     `{"name":"Ravi","phone":"+91980","password":"secret1"}`,
		"wrong type":      `{"name":"Ravi","age":"old","phone":"+91980","password":"secret1"}`,
		"bad coordinates": `{"name":"Ravi","age":35,"phone":"+91980","password":"secret1","location":{"coordinates":[1]}}`,
		"empty body":      ``,
		"trailing data":   `{"name":"Ravi","age":35,"phone":"+91980","password":"secret1"} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := newEnv(Options{})
			expect(t, env.do(t, http.MethodPost, "/workers", "", body), fiber.StatusBadRequest)
		})
	}
}

func TestRegisterWorker_ServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&profile.ValidationError{Field: "age", Msg: "must be between 18 and 70"}, fiber.StatusBadRequest},
		{profile.ErrDuplicatePhone, fiber.StatusConflict},
		{errors.New("db exploded"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		env := newEnv(Options{})
		env.profiles.err = tc.err
		res := env.do(t, http.MethodPost, "/workers", "", workerBody)
		expect(t, res, tc.code)
		if tc.code == fiber.StatusInternalServerError && res.body.DevMessage != "" {
			t.Fatal("dev message must be hidden outside dev mode")
		}
	}

	env := newEnv(Options{Dev: true})
	env.profiles.err = errors.New("db exploded")
	if res := env.do(t, http.MethodPost, "/workers", "", workerBody); res.body.DevMessage != "db exploded" {
		t.Fatalf("expected dev message, got %+v", res.body)
	}
}

func TestRegisterEmployer(t *testing.T) {
	env := newEnv(Options{})
	body := `{"name":"Asha","phone":"+919800000002","email":"a@example.com","password":"secret2",
		"company":{"name":"Asha Builders","registrationNumber":"U123"}}`
	res := env.do(t, http.MethodPost, "/employers", "", body)
	expect(t, res, fiber.StatusCreated)
	if env.profiles.employer.Company.RegistrationNumber != "U123" {
		t.Fatalf("company not passed through: %+v", env.profiles.employer)
	}
	expect(t, env.do(t, http.MethodGet, "/employers/e1", workerToken, ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/employers/nope", workerToken, ""), fiber.StatusNotFound)
}

func TestLoginLogout(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodPost, "/auth/login", "", `{"phone":"+919800000001","password":"secret1","role":"worker"}`)
	expect(t, res, fiber.StatusOK)
	if res.data(t)["token"] != workerToken {
		t.Fatalf("expected token, got %v", res.raw)
	}

	expect(t, env.do(t, http.MethodPost, "/auth/login", "", `{"phone":"1","password":"x","role":"admin"}`), fiber.StatusBadRequest)

	env.auth.loginErr = auth.ErrInvalidCredentials
	expect(t, env.do(t, http.MethodPost, "/auth/login", "", `{"phone":"1","password":"x","role":"worker"}`), fiber.StatusUnauthorized)

	expect(t, env.do(t, http.MethodPost, "/auth/logout", workerToken, ""), fiber.StatusOK)
	if len(env.auth.loggedOut) != 1 || env.auth.loggedOut[0] != "s-w" {
		t.Fatalf("expected session s-w revoked, got %v", env.auth.loggedOut)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newEnv(Options{})
	expect(t, env.do(t, http.MethodGet, "/workers/w1", "", ""), fiber.StatusUnauthorized)
	expect(t, env.do(t, http.MethodGet, "/workers/w1", "forged", ""), fiber.StatusUnauthorized)
	expect(t, env.do(t, http.MethodGet, "/workers/w1", employerToken, ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/workers/w9", employerToken, ""), fiber.StatusNotFound)
}

func TestUpdateWorker(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodPatch, "/workers/w1", workerToken, `{"age":36,"skills":["plumbing"]}`)
	expect(t, res, fiber.StatusOK)
	if env.profiles.lastUpd.Name != nil || fmt.Sprint(env.profiles.lastUpd.Skills) != "[plumbing]" {
		t.Fatalf("unexpected update %+v", env.profiles.lastUpd)
	}
	expect(t, env.do(t, http.MethodPatch, "/workers/w2", workerToken, `{"age":36}`), fiber.StatusForbidden)
	expect(t, env.do(t, http.MethodPatch, "/workers/w1", employerToken, `{"age":36}`), fiber.StatusForbidden)
}

func TestRecommendJobs(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodGet, "/workers/w1/jobs", workerToken, "")
	expect(t, res, fiber.StatusOK)
	matches, ok := res.raw["data"].([]any)
	if !ok || len(matches) != 2 {
		t.Fatalf("expected two matches, got %v", res.raw["data"])
	}
	first := matches[0].(map[string]any)
	if first["score"] != 0.95 || first["job"].(map[string]any)["id"] != "j1" {
		t.Fatalf("unexpected first match %v", first)
	}
	expect(t, env.do(t, http.MethodGet, "/workers/w2/jobs", workerToken, ""), fiber.StatusForbidden)
}

func TestExplainScore(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodGet, "/workers/w1/jobs/j1/score", employerToken, "")
	expect(t, res, fiber.StatusOK)
	if res.data(t)["eligible"] != true {
		t.Fatalf("unexpected breakdown %v", res.raw)
	}
	expect(t, env.do(t, http.MethodGet, "/workers/w2/jobs/j1/score", workerToken, ""), fiber.StatusForbidden)
	expect(t, env.do(t, http.MethodGet, "/workers/w1/jobs/zz/score", workerToken, ""), fiber.StatusNotFound)
}

func TestPostAndListJobs(t *testing.T) {
	env := newEnv(Options{})
	body := `{"title":"Wiring","requiredSkills":["electrical"],"wage":{"amount":800,"period":"daily"},
		"requiredExperience":1,"startDate":"2026-05-10T08:00:00Z"}`
	res := env.do(t, http.MethodPost, "/jobs", employerToken, body)
	expect(t, res, fiber.StatusCreated)
	if env.jobs.postedBy != "e1" || env.jobs.posted.Wage.Period != job.WageDaily {
		t.Fatalf("unexpected post %+v by %s", env.jobs.posted, env.jobs.postedBy)
	}
	expect(t, env.do(t, http.MethodPost, "/jobs", workerToken, body), fiber.StatusForbidden)
	expect(t, env.do(t, http.MethodPost, "/jobs", employerToken, `{"title":"x","requiredSkills":["a"]}`), fiber.StatusBadRequest)

	expect(t, env.do(t, http.MethodGet, "/jobs?status=open&limit=5", "", ""), fiber.StatusOK)
	if env.jobs.filter.Status != job.StatusOpen || env.jobs.filter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", env.jobs.filter)
	}
	expect(t, env.do(t, http.MethodGet, "/jobs?status=closed", "", ""), fiber.StatusBadRequest)
	expect(t, env.do(t, http.MethodGet, "/jobs?limit=-1", "", ""), fiber.StatusBadRequest)
	expect(t, env.do(t, http.MethodGet, "/jobs/j1", "", ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/jobs/j9", "", ""), fiber.StatusNotFound)
}

func TestApply(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodPost, "/jobs/j1/apply", workerToken, "")
	expect(t, res, fiber.StatusCreated)
	if env.jobs.applied != [2]string{"j1", "w1"} {
		t.Fatalf("unexpected apply %v", env.jobs.applied)
	}
	if res.data(t)["status"] != "pending" {
		t.Fatalf("expected pending application, got %v", res.raw)
	}
	expect(t, env.do(t, http.MethodPost, "/jobs/j1/apply", employerToken, ""), fiber.StatusForbidden)

	for err, code := range map[error]int{
		job.ErrDuplicateApplication: fiber.StatusConflict,
		job.ErrNotFound:             fiber.StatusNotFound,
		job.ErrNotOpen:              fiber.StatusUnprocessableEntity,
	} {
		env.jobs.err = err
		expect(t, env.do(t, http.MethodPost, "/jobs/j1/apply", workerToken, ""), code)
	}
}

func TestUpdateApplicationStatus(t *testing.T) {
	env := newEnv(Options{})
	res := env.do(t, http.MethodPatch, "/jobs/j1/applications/a1", employerToken, `{"status":"accepted"}`)
	expect(t, res, fiber.StatusOK)
	want := job.UpdateStatusParams{JobID: "j1", ApplicationID: "a1", EmployerID: "e1", To: job.ApplicationAccepted}
	if env.jobs.statusCall != want {
		t.Fatalf("expected %+v, got %+v", want, env.jobs.statusCall)
	}

	expect(t, env.do(t, http.MethodPatch, "/jobs/j1/applications/a1", employerToken, `{"status":"hired"}`), fiber.StatusBadRequest)
	expect(t, env.do(t, http.MethodPatch, "/jobs/j1/applications/a1", employerToken, `{}`), fiber.StatusBadRequest)
	expect(t, env.do(t, http.MethodPatch, "/jobs/j1/applications/a1", workerToken, `{"status":"accepted"}`), fiber.StatusForbidden)

	for err, code := range map[error]int{
		job.ErrInvalidTransition:   fiber.StatusUnprocessableEntity,
		job.ErrIneligible:          fiber.StatusUnprocessableEntity,
		job.ErrJobClosed:           fiber.StatusUnprocessableEntity,
		job.ErrNotOwner:            fiber.StatusForbidden,
		job.ErrApplicationNotFound: fiber.StatusNotFound,
	} {
		env.jobs.err = err
		expect(t, env.do(t, http.MethodPatch, "/jobs/j1/applications/a1", employerToken, `{"status":"completed"}`), code)
	}
}

func TestApplicationsAndPayment(t *testing.T) {
	env := newEnv(Options{})
	expect(t, env.do(t, http.MethodGet, "/jobs/j1/applications", employerToken, ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/workers/w1/applications", workerToken, ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/workers/w2/applications", workerToken, ""), fiber.StatusForbidden)

	res := env.do(t, http.MethodPost, "/jobs/j1/applications/a1/payment", employerToken, `{"amount":1500}`)
	expect(t, res, fiber.StatusOK)
	if res.data(t)["paymentStatus"] != "paid" || env.jobs.payment.Amount != 1500 {
		t.Fatalf("unexpected payment %v", res.raw)
	}
	env.jobs.err = job.ErrAlreadyPaid
	expect(t, env.do(t, http.MethodPost, "/jobs/j1/applications/a1/payment", employerToken, `{"amount":1500}`), fiber.StatusConflict)
	env.jobs.err = job.ErrNotCompleted
	expect(t, env.do(t, http.MethodPost, "/jobs/j1/applications/a1/payment", employerToken, `{"amount":1500}`), fiber.StatusUnprocessableEntity)
}

func TestRateLimit(t *testing.T) {
	env := newEnv(Options{RateLimit: 2, RateWindow: time.Minute})
	expect(t, env.do(t, http.MethodGet, "/jobs/j1", "", ""), fiber.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/jobs/j1", "", ""), fiber.StatusOK)
	if res := env.do(t, http.MethodGet, "/jobs/j1", "", ""); res.code != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.code)
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	env := newEnv(Options{})
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("livez: %v %v", resp, err)
	}
	expect(t, env.do(t, http.MethodGet, "/nowhere", "", ""), fiber.StatusNotFound)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&job.ValidationError{Field: "title", Msg: "is required"}, 400},
		{fmt.Errorf("wrapped: %w", profile.ErrWorkerNotFound), 404},
		{job.ErrUnknownParty, 404},
		{auth.ErrSessionRevoked, 401},
		{auth.ErrForbidden, 403},
		{fiber.ErrMethodNotAllowed, 405},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		if code, _ := statusFor(tc.err); code != tc.code {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, code, tc.code)
		}
	}
}
