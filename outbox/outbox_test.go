package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gigmatch/test/fakes"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriter_Enqueue(t *testing.T) {
	tx := &fakes.Tx{}
	w := NewWriter()

	err := w.Enqueue(context.Background(), tx, TopicJobPosted, map[string]any{"job_id": "j-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(tx.Execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(tx.Execs))
	}
	exec := tx.Execs[0]
	if !strings.Contains(exec.SQL, "INSERT INTO outbox") {
		t.Fatalf("unexpected sql %q", exec.SQL)
	}
	if exec.Args[0] != TopicJobPosted {
		t.Fatalf("expected topic arg, got %v", exec.Args[0])
	}
	var payload map[string]string
	if err := json.Unmarshal(exec.Args[1].([]byte), &payload); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if payload["job_id"] != "j-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWriter_EnqueueRejectsEmptyTopic(t *testing.T) {
	if err := NewWriter().Enqueue(context.Background(), &fakes.Tx{}, "", nil); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestWriter_EnqueuePropagatesExecError(t *testing.T) {
	tx := &fakes.Tx{ExecErr: errors.New("boom")}
	if err := NewWriter().Enqueue(context.Background(), tx, TopicJobPosted, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelay_RunOnce(t *testing.T) {
	store := newFakeStore(
		Message{ID: "m1", Topic: TopicWorkerRegistered},
		Message{ID: "m2", Topic: TopicJobPosted},
		Message{ID: "m3", Topic: TopicApplicationPaid, Attempts: 4},
	)
	pool := &fakes.Pool{}
	core, logs := observer.New(zapcore.WarnLevel)

	dispatcher := DispatcherFunc(func(_ context.Context, msg Message) error {
		if msg.Topic == TopicWorkerRegistered {
			return nil
		}
		return errors.New("gateway down")
	})

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	relay := NewRelay(pool, store, dispatcher, zap.New(core)).
		WithMaxAttempts(5).
		WithClock(func() time.Time { return fixed })

	stats, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if stats != (RelayStats{Claimed: 3, Processed: 1, Retried: 1, Dead: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !pool.Last().Committed {
		t.Fatal("expected commit")
	}
	if store.status["m1"] != StatusProcessed {
		t.Fatalf("m1: expected processed, got %s", store.status["m1"])
	}
	if store.status["m2"] != StatusPending {
		t.Fatalf("m2: expected pending, got %s", store.status["m2"])
	}
	if store.status["m3"] != StatusDead {
		t.Fatalf("m3: expected dead, got %s", store.status["m3"])
	}
	if !store.lastAttempt["m1"].Equal(fixed) {
		t.Fatalf("expected clock to be used, got %s", store.lastAttempt["m1"])
	}
	if logs.FilterMessage("dispatch failed, will retry").Len() != 1 {
		t.Fatal("expected retry warning")
	}
	if logs.FilterMessage("message moved to dead letter").Len() != 1 {
		t.Fatal("expected dead letter error log")
	}
}

func TestRelay_RunOnceEmpty(t *testing.T) {
	pool := &fakes.Pool{}
	relay := NewRelay(pool, newFakeStore(), DispatcherFunc(func(context.Context, Message) error {
		t.Fatal("dispatcher should not be called")
		return nil
	}), nil)

	stats, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if stats.Claimed != 0 {
		t.Fatalf("expected nothing claimed, got %d", stats.Claimed)
	}
	if pool.Last().Committed {
		t.Fatal("empty pass should not commit")
	}
}

func TestRelay_ClaimErrorRollsBack(t *testing.T) {
	pool := &fakes.Pool{}
	store := newFakeStore()
	store.claimErr = errors.New("connection reset")

	_, err := NewRelay(pool, store, DispatcherFunc(func(context.Context, Message) error { return nil }), nil).RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected claim error")
	}
	if !pool.Last().RolledBack {
		t.Fatal("expected rollback")
	}
}

func TestRelay_Drain(t *testing.T) {
	var msgs []Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, Message{ID: string(rune('a' + i)), Topic: TopicJobPosted})
	}
	store := newFakeStore(msgs...)
	var delivered int
	relay := NewRelay(&fakes.Pool{}, store, DispatcherFunc(func(context.Context, Message) error {
		delivered++
		return nil
	}), nil).WithBatchSize(2)

	stats, err := relay.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if delivered != 5 || stats.Processed != 5 {
		t.Fatalf("expected 5 delivered, got %d (stats %+v)", delivered, stats)
	}
}

type fakeStore struct {
	mu          sync.Mutex
	order       []string
	msgs        map[string]Message
	status      map[string]Status
	lastAttempt map[string]time.Time
	claimErr    error
}

func newFakeStore(msgs ...Message) *fakeStore {
	s := &fakeStore{
		msgs:        make(map[string]Message),
		status:      make(map[string]Status),
		lastAttempt: make(map[string]time.Time),
	}
	for _, m := range msgs {
		s.order = append(s.order, m.ID)
		s.msgs[m.ID] = m
		s.status[m.ID] = StatusPending
	}
	return s
}

func (s *fakeStore) Claim(_ context.Context, _ pgx.Tx, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	var out []Message
	for _, id := range s.order {
		if len(out) == limit {
			break
		}
		if s.status[id] == StatusPending {
			out = append(out, s.msgs[id])
		}
	}
	return out, nil
}

func (s *fakeStore) MarkProcessed(_ context.Context, _ pgx.Tx, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = StatusProcessed
	s.lastAttempt[id] = at
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ pgx.Tx, id string, _ string, at time.Time, maxAttempts int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.msgs[id]
	m.Attempts++
	s.msgs[id] = m
	s.lastAttempt[id] = at
	if m.Attempts >= maxAttempts {
		s.status[id] = StatusDead
	}
	return s.status[id], nil
}
