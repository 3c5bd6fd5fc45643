package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
	"github.com/iho/tradeledger/internal/usecase"
	"github.com/iho/tradeledger/internal/usecase/mocks"
)

func TestReconcileEntity_MatchesAfterActivity(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)
	m := e.pay(t, "cust-1", "60")
	if _, err := e.cash.Delete(context.Background(), actor, m.Movement.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.sales.DeleteSale(context.Background(), usecase.DeleteSaleInput{ActorID: actor, SaleID: s.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := e.recon.ReconcileEntity(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.IsReconciled {
		t.Fatalf("expected entity to be reconciled, difference %v violations %v", result.Difference, result.SourceViolations)
	}
	if want := len(e.mem.Store.Entries("cust-1")); result.EntryCount != want {
		t.Fatalf("expected %d entries, got %d", want, result.EntryCount)
	}
	if result.LastChecked.IsZero() {
		t.Fatal("expected LastChecked timestamp to be set")
	}
}

func TestReconcileEntity_DetectsDrift(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	e.sale(t, "cust-1", "100", 1)

	tampered := e.mem.Store.Entity("cust-1")
	tampered.Balance[domain.CurrencyUZS] = dec("90")
	e.mem.Store.PutEntity(tampered)

	result, err := e.recon.ReconcileEntity(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.IsReconciled {
		t.Fatal("expected drift to be reported")
	}
	if !result.Difference.Get(domain.CurrencyUZS).Equal(dec("-10")) {
		t.Fatalf("expected difference -10, got %s", result.Difference.Get(domain.CurrencyUZS))
	}
}

func TestReconcileEntity_ReportsBrokenSource(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	s := e.sale(t, "cust-1", "100", 1)

	broken := e.mem.Store.Source(s.ID)
	broken.TotalsFor(domain.CurrencyUZS).Paid = dec("30")
	e.mem.Store.PutSource(broken)

	result, err := e.recon.ReconcileEntity(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.IsReconciled {
		t.Fatal("expected source violation to fail reconciliation")
	}
	if len(result.SourceViolations) != 1 {
		t.Fatalf("expected 1 violation, got %v", result.SourceViolations)
	}
}

func TestReconcileEntity_RetriesReads(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")

	retrier := &mocks.CountingRetrier{Attempts: 3}
	e.recon.WithRetrier(retrier)

	if _, err := e.recon.ReconcileEntity(context.Background(), "cust-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retrier.Calls != 1 {
		t.Fatalf("expected a single attempt, got %d", retrier.Calls)
	}

	_, err := e.recon.ReconcileEntity(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if retrier.Calls != 4 {
		t.Fatalf("expected 3 more attempts, got %d", retrier.Calls-1)
	}
}

func TestReconcileEntity_ReadsThroughRetrier(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")

	ctrl := gomock.NewController(t)
	retrier := mocks.NewMockRetrier(ctrl)
	retrier.EXPECT().
		Retry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, op func() error) error { return op() }).
		MinTimes(1)
	e.recon.WithRetrier(retrier)

	result, err := e.recon.ReconcileEntity(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsReconciled {
		t.Fatalf("expected a fresh entity to reconcile, got %+v", result)
	}
}

func TestReconcileAll(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	e.supplier(t, "sup-1")
	e.sale(t, "cust-1", "100", 1)

	results, err := e.recon.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.IsReconciled {
			t.Fatalf("expected %s to be reconciled", r.EntityID)
		}
	}
}

func TestCheckLedgerConsistency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		balanceDelta domain.Amounts
		entrySum     domain.Amounts
		repoErr      error
		wantErr      error
	}{
		{
			name:         "balanced",
			balanceDelta: mocks.Amounts("500", "20"),
			entrySum:     mocks.Amounts("500", "20"),
		},
		{
			name:         "uzs drift",
			balanceDelta: mocks.Amounts("500", "20"),
			entrySum:     mocks.Amounts("450", "20"),
			wantErr:      usecase.ErrInconsistentLedger,
		},
		{
			name:         "usd drift",
			balanceDelta: mocks.Amounts("0", "20"),
			entrySum:     mocks.Amounts("0", "0"),
			wantErr:      usecase.ErrInconsistentLedger,
		},
		{
			name:    "repo error surfaces",
			repoErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
			ledgerRepo.EXPECT().CheckConsistency(gomock.Any()).Return(tt.balanceDelta, tt.entrySum, tt.repoErr)

			uc := usecase.NewReconciliationUseCase(nil, nil, nil, ledgerRepo, nil, nil)
			err := uc.CheckLedgerConsistency(context.Background())

			switch {
			case tt.repoErr != nil:
				if !errors.Is(err, tt.repoErr) {
					t.Fatalf("expected %v, got %v", tt.repoErr, err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestGenerateReport_CachesLastReport(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	e.customer(t, "cust-2")
	e.sale(t, "cust-1", "100", 1)
	e.pay(t, "cust-1", "25")

	tampered := e.mem.Store.Entity("cust-2")
	tampered.Balance[domain.CurrencyUSD] = dec("5")
	e.mem.Store.PutEntity(tampered)

	if _, err := e.recon.LastReport(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found before first report, got %v", err)
	}

	report, err := e.recon.GenerateReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalEntities != 2 || report.ReconciledEntities != 1 {
		t.Fatalf("expected 1 of 2 reconciled, got %d of %d", report.ReconciledEntities, report.TotalEntities)
	}
	if len(report.Discrepancies) != 1 || report.Discrepancies[0].EntityID != "cust-2" {
		t.Fatalf("expected cust-2 discrepancy, got %+v", report.Discrepancies)
	}
	if report.LedgerConsistent {
		t.Fatal("expected tampered balance to break ledger consistency")
	}

	cached, err := e.recon.LastReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached.TotalEntities != 2 || cached.LedgerError == "" {
		t.Fatalf("unexpected cached report %+v", cached)
	}
}

func TestGenerateReport_CacheFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.customer(t, "cust-1")
	e.cache.SetFunc = func(context.Context, string, []byte, time.Duration) error {
		return errors.New("redis unavailable")
	}

	report, err := e.recon.GenerateReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.LedgerConsistent {
		t.Fatal("expected consistent ledger")
	}
}

func TestLastReport_UsesCacheMiss(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), usecase.ReportCacheKey).Return(nil, usecase.ErrCacheMiss)

	uc := usecase.NewReconciliationUseCase(nil, nil, nil, nil, cache, metrics.NewWithRegistry(prometheus.NewRegistry()))

	_, err := uc.LastReport(context.Background())
	if !errors.Is(err, usecase.ErrReportNotFound) {
		t.Fatalf("expected report not found, got %v", err)
	}
}
