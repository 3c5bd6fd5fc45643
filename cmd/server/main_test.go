package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/iho/tradeledger/internal/infrastructure/config"
	"github.com/iho/tradeledger/internal/infrastructure/eventpublisher"
	"github.com/iho/tradeledger/internal/infrastructure/logging"
	"github.com/iho/tradeledger/internal/usecase"
)

func TestNewPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		sink    string
		want    any
		wantErr bool
	}{
		{sink: "stream", want: &eventpublisher.StreamPublisher{}},
		{sink: "log", want: &eventpublisher.LogPublisher{}},
		{sink: "kafka", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.sink, func(t *testing.T) {
			cfg := &config.Config{EventSink: tt.sink, EventStream: "events"}
			p, err := newPublisher(cfg, client, slog.Default())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown sink")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch tt.want.(type) {
			case *eventpublisher.StreamPublisher:
				if _, ok := p.(*eventpublisher.StreamPublisher); !ok {
					t.Fatalf("expected stream publisher, got %T", p)
				}
			case *eventpublisher.LogPublisher:
				if _, ok := p.(*eventpublisher.LogPublisher); !ok {
					t.Fatalf("expected log publisher, got %T", p)
				}
			}
		})
	}
}

func TestEveryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})

	go func() {
		every(ctx, 5*time.Millisecond, func() {
			if calls.Add(1) == 2 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("every did not return after cancel")
	}
	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", calls.Load())
	}
}

type stubReports struct {
	report *usecase.ReconciliationReport
	err    error
	actor  string
}

func (s *stubReports) GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error) {
	s.actor = logging.ActorID(ctx)
	return s.report, s.err
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func TestScheduledReconcile(t *testing.T) {
	tests := []struct {
		name  string
		stub  *stubReports
		wants []string
	}{
		{
			name:  "finished",
			stub:  &stubReports{report: &usecase.ReconciliationReport{TotalEntities: 3, ReconciledEntities: 3, LedgerConsistent: true}},
			wants: []string{`"msg":"scheduled reconciliation finished"`, `"entities":3`},
		},
		{
			name:  "failed",
			stub:  &stubReports{err: errors.New("db down")},
			wants: []string{`"level":"ERROR"`, `"error":"db down"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			scheduledReconcile(context.Background(), tt.stub, fixedID("01J"), logging.NewWithWriter(&buf, slog.LevelInfo, "json"))

			if tt.stub.actor != logging.SchedulerActor {
				t.Fatalf("expected scheduler actor on context, got %q", tt.stub.actor)
			}
			out := buf.String()
			for _, want := range append(tt.wants, `"request_id":"reconcile-01J"`, `"actor_id":"system:scheduler"`) {
				if !strings.Contains(out, want) {
					t.Fatalf("expected %s in %q", want, out)
				}
			}
		})
	}
}
