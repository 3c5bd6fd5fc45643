package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/logging"
	"github.com/iho/tradeledger/internal/usecase"
)

func TestProcessEventsPublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{{ID: "evt-1", EventType: "type"}},
	}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)

	if err := ep.processEvents(context.Background()); err != nil {
		t.Fatalf("processEvents failed: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(pub.published))
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-1" {
		t.Fatalf("expected event to be marked published, got %#v", repo.marked)
	}
}

func TestProcessEventsContinuesOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			{ID: "evt-1", EventType: "type"},
			{ID: "evt-2", EventType: "type"},
		},
	}
	pub := &stubPublisher{
		errorsByID: map[string]error{"evt-1": errors.New("fail")},
	}
	ep := newTestPublisher(repo, pub)

	if err := ep.processEvents(context.Background()); err != nil {
		t.Fatalf("processEvents returned error: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0].ID != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %#v", pub.published)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be marked, got %#v", repo.marked)
	}
}

func TestProcessEventsLogsFailureWithActor(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{{
			ID:        "evt-1",
			EventType: domain.EventTypePaymentApplied,
			Payload:   map[string]any{"actor_id": "op-3"},
		}},
	}
	pub := &stubPublisher{errorsByID: map[string]error{"evt-1": errors.New("stream down")}}

	var buf bytes.Buffer
	ep := NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     logging.NewWithWriter(&buf, slog.LevelInfo, "json"),
	})

	if err := ep.processEvents(context.Background()); err != nil {
		t.Fatalf("processEvents returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"actor_id":"op-3"`) || !strings.Contains(out, `"event_id":"evt-1"`) {
		t.Fatalf("expected actor and event in failure log, got %q", out)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)
	ep.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestProcessEventsReportsMarkFailures(t *testing.T) {
	repo := &stubOutboxRepo{
		events:  []*domain.OutboxEvent{{ID: "evt-1"}, {ID: "evt-2"}},
		markErr: errors.New("db down"),
	}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)

	err := ep.processEvents(context.Background())
	if err == nil {
		t.Fatal("expected mark failures to be reported")
	}
	if len(pub.published) != 2 {
		t.Fatalf("expected both events to be published, got %d", len(pub.published))
	}
}

func TestCleanupRunsOncePerRetentionWindow(t *testing.T) {
	repo := &stubOutboxRepo{}
	ep := newTestPublisher(repo, &stubPublisher{})
	ep.retention = time.Hour

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ep.now = func() time.Time { return now }

	ctx := context.Background()
	if err := ep.cleanup(ctx); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if err := ep.cleanup(ctx); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	now = now.Add(time.Hour)
	if err := ep.cleanup(ctx); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if len(repo.deleteCuts) != 2 {
		t.Fatalf("expected 2 cleanups, got %d", len(repo.deleteCuts))
	}
	if want := now.Add(-time.Hour); !repo.deleteCuts[1].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.deleteCuts[1])
	}
}

func TestStreamPublisherAppendsToStream(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewStreamPublisher(client, "", 0)
	event := &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "cust-1",
		AggregateType: domain.AggregateTypeEntity,
		EventType:     domain.EventTypePaymentApplied,
		Payload:       map[string]any{"amount": "60.00"},
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msgs, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream message, got %d", len(msgs))
	}
	if msgs[0].Values["event_type"] != domain.EventTypePaymentApplied || msgs[0].Values["payload"] != `{"amount":"60.00"}` {
		t.Fatalf("unexpected message %v", msgs[0].Values)
	}
}

func newTestPublisher(repo *stubOutboxRepo, pub *stubPublisher) *EventPublisher {
	return NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     logging.Discard(),
		BatchSize:  10,
		Interval:   5 * time.Millisecond,
	})
}

type stubOutboxRepo struct {
	events     []*domain.OutboxEvent
	marked     []string
	markErr    error
	deleteCuts []time.Time
}

func (s *stubOutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return nil
}

func (s *stubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if len(s.events) <= limit {
		return append([]*domain.OutboxEvent(nil), s.events...), nil
	}
	return append([]*domain.OutboxEvent(nil), s.events[:limit]...), nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubOutboxRepo) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (s *stubOutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	s.deleteCuts = append(s.deleteCuts, before)
	return nil
}

type stubPublisher struct {
	published  []*domain.OutboxEvent
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.published = append(s.published, event)
	return nil
}
