package profile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"gigmatch/outbox"
	"gigmatch/test/fakes"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterWorker_AgeBounds(t *testing.T) {
	cases := []struct {
		age     int
		wantErr bool
	}{
		{17, true},
		{18, false},
		{45, false},
		{70, false},
		{71, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.age), func(t *testing.T) {
			svc, _, _, _ := newTestService()
			in := validWorkerInput()
			in.Age = tc.age
			in.Phone = fmt.Sprintf("+9198765%05d", tc.age)

			_, err := svc.RegisterWorker(context.Background(), in)
			if tc.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) || vErr.Field != "age" {
					t.Fatalf("expected age validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegisterWorker_Coordinates(t *testing.T) {
	svc, _, _, _ := newTestService()

	in := validWorkerInput()
	in.Location.Point = &Point{Lon: 181, Lat: 91}
	_, err := svc.RegisterWorker(context.Background(), in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "location.coordinates" {
		t.Fatalf("expected coordinate validation error, got %v", err)
	}

	in.Location.Point = &Point{Lon: 77.209, Lat: 28.6139}
	w, err := svc.RegisterWorker(context.Background(), in)
	if err != nil {
		t.Fatalf("expected valid coordinates to be accepted: %v", err)
	}
	if w.Location.Point == nil || w.Location.Point.Lon != 77.209 {
		t.Fatalf("coordinates not stored: %+v", w.Location)
	}
}

func TestRegisterWorker_DuplicatePhone(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.RegisterWorker(ctx, validWorkerInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.RegisterWorker(ctx, validWorkerInput())
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		t.Fatal("duplicate phone must be distinct from validation errors")
	}
}

func TestRegisterWorker_ScoresHashesAndEnqueues(t *testing.T) {
	svc, pool, ob, scorer := newTestService()

	in := validWorkerInput()
	in.Skills = []string{" Electrical", "electrical", "Plumbing "}
	w, err := svc.RegisterWorker(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if !reflect.DeepEqual(w.Skills, []string{"electrical", "plumbing"}) {
		t.Fatalf("expected normalized skills, got %v", w.Skills)
	}
	if w.ShaktiScore != 42 || scorer.calls != 1 {
		t.Fatalf("expected scorer result 42 after one call, got %v (%d calls)", w.ShaktiScore, scorer.calls)
	}
	if !w.IsAvailable {
		t.Fatal("new workers default to available")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PasswordHash), []byte(in.Password)); err != nil {
		t.Fatalf("password not hashed with bcrypt: %v", err)
	}
	if !pool.Last().Committed {
		t.Fatal("expected commit")
	}
	if len(ob.topics) != 1 || ob.topics[0] != outbox.TopicWorkerRegistered {
		t.Fatalf("expected worker.registered, got %v", ob.topics)
	}
	if ob.payloads[0]["phone"] != w.Phone {
		t.Fatalf("expected phone in payload, got %v", ob.payloads[0])
	}
}

func TestRegisterWorker_Validation(t *testing.T) {
	cases := map[string]func(*WorkerInput){
		"password":   func(in *WorkerInput) { in.Password = "12345" },
		"name":       func(in *WorkerInput) { in.Name = "  " },
		"phone":      func(in *WorkerInput) { in.Phone = "call me" },
		"experience": func(in *WorkerInput) { in.Experience = -1 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			svc, pool, _, _ := newTestService()
			in := validWorkerInput()
			mutate(&in)
			_, err := svc.RegisterWorker(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != field {
				t.Fatalf("expected %s validation error, got %v", field, err)
			}
			if pool.Last() != nil {
				t.Fatal("validation must fail before opening a transaction")
			}
		})
	}
}

func TestRegisterWorker_OutboxFailureRollsBack(t *testing.T) {
	svc, pool, ob, _ := newTestService()
	ob.err = errors.New("outbox unavailable")

	if _, err := svc.RegisterWorker(context.Background(), validWorkerInput()); err == nil {
		t.Fatal("expected error")
	}
	if pool.Last().Committed || !pool.Last().RolledBack {
		t.Fatal("expected rollback without commit")
	}
}

func TestUpdateWorker_RecomputesScore(t *testing.T) {
	svc, _, _, scorer := newTestService()
	ctx := context.Background()

	w, err := svc.RegisterWorker(ctx, validWorkerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	scorer.score = 77
	exp := 9
	updated, err := svc.UpdateWorker(ctx, w.ID, WorkerUpdate{Experience: &exp, Languages: []string{"Hindi", "English"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Experience != 9 || updated.ShaktiScore != 77 {
		t.Fatalf("expected experience 9 and score 77, got %+v", updated)
	}
	if !reflect.DeepEqual(updated.Languages, []string{"english", "hindi"}) {
		t.Fatalf("unexpected languages %v", updated.Languages)
	}
	if scorer.calls != 2 {
		t.Fatalf("expected score recomputed, calls=%d", scorer.calls)
	}

	bad := 71
	if _, err := svc.UpdateWorker(ctx, w.ID, WorkerUpdate{Age: &bad}); err == nil {
		t.Fatal("expected age validation on update")
	}
	if _, err := svc.UpdateWorker(ctx, "missing", WorkerUpdate{}); !errors.Is(err, ErrWorkerNotFound) {
		t.Fatalf("expected ErrWorkerNotFound, got %v", err)
	}
}

func TestRegisterEmployer(t *testing.T) {
	svc, _, ob, _ := newTestService()
	ctx := context.Background()

	in := EmployerInput{
		Name:     "Ravi Builders",
		Phone:    "+919800000001",
		Email:    "hr@ravi.example",
		Password: "secret1",
		Company:  Company{Name: "Ravi Builders Pvt Ltd"},
	}
	e, err := svc.RegisterEmployer(ctx, in)
	if err != nil {
		t.Fatalf("register employer: %v", err)
	}
	if e.Company.Name != "Ravi Builders Pvt Ltd" {
		t.Fatalf("unexpected company %+v", e.Company)
	}
	if ob.topics[0] != outbox.TopicEmployerRegistered {
		t.Fatalf("expected employer.registered, got %v", ob.topics)
	}
	if _, err := svc.RegisterEmployer(ctx, in); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}

	in.Phone = "+919800000002"
	in.Email = "not-an-email"
	var vErr *ValidationError
	if _, err := svc.RegisterEmployer(ctx, in); !errors.As(err, &vErr) || vErr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}

	got, err := svc.GetEmployer(ctx, e.ID)
	if err != nil || got.ID != e.ID {
		t.Fatalf("get employer: %v %+v", err, got)
	}
}

func TestNormalizeSet(t *testing.T) {
	got := NormalizeSet([]string{"B", " a ", "b", "", "A"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected %v", got)
	}
	if got := NormalizeSet(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := NormalizeList([]string{"Hindi", "english", "hindi"}); !reflect.DeepEqual(got, []string{"hindi", "english"}) {
		t.Fatalf("expected order kept, got %v", got)
	}
}

func validWorkerInput() WorkerInput {
	return WorkerInput{
		Name:       "Asha",
		Age:        35,
		Phone:      "+919812345678",
		Password:   "secret1",
		Skills:     []string{"electrical"},
		Experience: 5,
		Languages:  []string{"hindi"},
		Location:   Location{Address: "Delhi"},
	}
}

func newTestService() (*Service, *fakes.Pool, *recordingOutbox, *stubScorer) {
	pool := &fakes.Pool{}
	ob := &recordingOutbox{}
	scorer := &stubScorer{score: 42}
	n := 0
	svc := NewService(pool, newFakeRepository(), scorer, ob).
		WithHashCost(bcrypt.MinCost).
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		})
	return svc, pool, ob, scorer
}

type stubScorer struct {
	score float64
	calls int
}

func (s *stubScorer) ShaktiScore(Worker) float64 {
	s.calls++
	return s.score
}

type recordingOutbox struct {
	err      error
	topics   []string
	payloads []map[string]any
}

func (r *recordingOutbox) Enqueue(_ context.Context, _ pgx.Tx, topic string, payload map[string]any) error {
	if r.err != nil {
		return r.err
	}
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
	return nil
}

type fakeRepository struct {
	mu        sync.Mutex
	workers   map[string]Worker
	employers map[string]Employer
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		workers:   make(map[string]Worker),
		employers: make(map[string]Employer),
	}
}

func (f *fakeRepository) CreateWorker(_ context.Context, _ pgx.Tx, w Worker) (Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.workers {
		if existing.Phone == w.Phone {
			return Worker{}, ErrDuplicatePhone
		}
	}
	f.workers[w.ID] = w
	return w, nil
}

func (f *fakeRepository) GetWorker(_ context.Context, id string) (Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return Worker{}, ErrWorkerNotFound
	}
	return w, nil
}

func (f *fakeRepository) GetWorkerForUpdate(ctx context.Context, _ pgx.Tx, id string) (Worker, error) {
	return f.GetWorker(ctx, id)
}

func (f *fakeRepository) UpdateWorker(_ context.Context, _ pgx.Tx, w Worker) (Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.workers[w.ID]; !ok {
		return Worker{}, ErrWorkerNotFound
	}
	f.workers[w.ID] = w
	return w, nil
}

func (f *fakeRepository) ListAvailableWorkers(context.Context) ([]Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Worker
	for _, w := range f.workers {
		if w.IsAvailable {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateEmployer(_ context.Context, _ pgx.Tx, e Employer) (Employer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.employers {
		if existing.Phone == e.Phone {
			return Employer{}, ErrDuplicatePhone
		}
	}
	f.employers[e.ID] = e
	return e, nil
}

func (f *fakeRepository) GetEmployer(_ context.Context, id string) (Employer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employers[id]
	if !ok {
		return Employer{}, ErrEmployerNotFound
	}
	return e, nil
}
