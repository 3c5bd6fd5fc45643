package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
)

var (
	// ErrInconsistentLedger is returned when balances and entries disagree.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: balances do not match entries")

	// ErrCacheMiss is returned by Cache implementations for absent keys.
	ErrCacheMiss = errors.New("cache miss")

	// ErrReportNotFound is returned when no reconciliation report is cached.
	ErrReportNotFound = &domain.Error{Kind: domain.KindNotFound, Message: "no reconciliation report available"}
)

// ReconciliationUseCase replays entries to verify stored balances and
// debt source invariants.
type ReconciliationUseCase struct {
	entityRepo EntityRepository
	sourceRepo DebtSourceRepository
	entryRepo  EntryRepository
	ledgerRepo LedgerRepository
	cache      Cache
	retrier    Retrier
	metrics    *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	entityRepo EntityRepository,
	sourceRepo DebtSourceRepository,
	entryRepo EntryRepository,
	ledgerRepo LedgerRepository,
	cache Cache,
	metrics *metrics.Metrics,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		entityRepo: entityRepo,
		sourceRepo: sourceRepo,
		entryRepo:  entryRepo,
		ledgerRepo: ledgerRepo,
		cache:      cache,
		metrics:    metrics,
	}
}

// WithRetrier sets the retrier used around read queries.
func (uc *ReconciliationUseCase) WithRetrier(r Retrier) *ReconciliationUseCase {
	uc.retrier = r
	return uc
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	EntityID         string         `json:"entity_id"`
	Recorded         domain.Amounts `json:"recorded"`
	Calculated       domain.Amounts `json:"calculated"`
	Difference       domain.Amounts `json:"difference"`
	EntryCount       int            `json:"entry_count"`
	SourceViolations []string       `json:"source_violations,omitempty"`
	IsReconciled     bool           `json:"is_reconciled"`
	LastChecked      time.Time      `json:"last_checked"`
}

// ReconcileEntity replays the entity's entries from its opening balance and
// checks every debt source it owns.
func (uc *ReconciliationUseCase) ReconcileEntity(ctx context.Context, entityID string) (*ReconciliationResult, error) {
	if err := domain.ValidateID(entityID); err != nil {
		return nil, err
	}

	var (
		entity  *domain.Entity
		entries []*domain.LedgerEntry
		sources []*domain.DebtSource
	)

	err := uc.retry(ctx, func() error {
		var err error
		if entity, err = uc.entityRepo.GetByID(ctx, entityID); err != nil {
			return err
		}
		if entries, err = uc.entryRepo.ListAllByEntity(ctx, entityID); err != nil {
			return err
		}
		sources, err = uc.allSources(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}

	calculated := domain.Replay(entity.OpeningBalance, entries)
	diff := domain.NewAmounts()
	for _, c := range domain.Currencies {
		diff[c] = entity.Balance.Get(c).Sub(calculated.Get(c))
	}

	var violations error
	for _, s := range sources {
		violations = multierr.Append(violations, s.CheckInvariants())
	}

	result := &ReconciliationResult{
		EntityID:     entityID,
		Recorded:     entity.Balance.Clone(),
		Calculated:   calculated,
		Difference:   diff,
		EntryCount:   len(entries),
		IsReconciled: diff.IsZero() && violations == nil,
		LastChecked:  time.Now().UTC(),
	}
	for _, v := range multierr.Errors(violations) {
		result.SourceViolations = append(result.SourceViolations, v.Error())
	}

	if !result.IsReconciled && uc.metrics != nil {
		uc.metrics.ReconcileMismatch.Inc()
	}

	return result, nil
}

// ReconcileAll reconciles every entity. Entities that fail to load do not
// stop the run; their errors are combined into the returned error.
func (uc *ReconciliationUseCase) ReconcileAll(ctx context.Context) ([]*ReconciliationResult, error) {
	var (
		results []*ReconciliationResult
		errs    error
	)

	for offset := 0; ; offset += reconcileBatchSize {
		var page []*domain.Entity
		err := uc.retry(ctx, func() error {
			var err error
			page, err = uc.entityRepo.List(ctx, "", reconcileBatchSize, offset)
			return err
		})
		if err != nil {
			return results, multierr.Append(errs, err)
		}

		for _, e := range page {
			if err := ctx.Err(); err != nil {
				return results, multierr.Append(errs, err)
			}
			r, err := uc.ReconcileEntity(ctx, e.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to reconcile entity %s: %w", e.ID, err))
				continue
			}
			results = append(results, r)
		}

		if len(page) < reconcileBatchSize {
			break
		}
	}

	return results, errs
}

// CheckLedgerConsistency compares, per currency, the total movement of all
// balances away from their opening values with the signed sum of entries.
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	var balanceDelta, entrySum domain.Amounts
	err := uc.retry(ctx, func() error {
		var err error
		balanceDelta, entrySum, err = uc.ledgerRepo.CheckConsistency(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var errs error
	for _, c := range domain.Currencies {
		if !balanceDelta.Get(c).Equal(entrySum.Get(c)) {
			errs = multierr.Append(errs, fmt.Errorf(
				"%w: %s balances moved %s, entries sum to %s",
				ErrInconsistentLedger,
				c,
				balanceDelta.Get(c).StringFixed(domain.MoneyScale),
				entrySum.Get(c).StringFixed(domain.MoneyScale),
			))
		}
	}
	return errs
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalEntities      int                     `json:"total_entities"`
	ReconciledEntities int                     `json:"reconciled_entities"`
	Discrepancies      []*ReconciliationResult `json:"discrepancies"`
	Failures           []string                `json:"failures,omitempty"`
	LedgerConsistent   bool                    `json:"ledger_consistent"`
	LedgerError        string                  `json:"ledger_error,omitempty"`
	CheckedAt          time.Time               `json:"checked_at"`
}

// GenerateReport reconciles everything and caches the report.
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context) (*ReconciliationReport, error) {
	start := time.Now()

	results, err := uc.ReconcileAll(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalEntities: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}
	for _, e := range multierr.Errors(err) {
		report.Failures = append(report.Failures, e.Error())
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledEntities++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	if ledgerErr := uc.CheckLedgerConsistency(ctx); ledgerErr != nil {
		report.LedgerError = ledgerErr.Error()
	} else {
		report.LedgerConsistent = true
	}

	if uc.cache != nil {
		if data, mErr := json.Marshal(report); mErr == nil {
			// a failed cache write only loses the shortcut for LastReport
			_ = uc.cache.Set(ctx, ReportCacheKey, data, ReportCacheTTL)
		}
	}

	if uc.metrics != nil {
		uc.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}

	return report, nil
}

// LastReport returns the most recently generated report from the cache.
func (uc *ReconciliationUseCase) LastReport(ctx context.Context) (*ReconciliationReport, error) {
	if uc.cache == nil {
		return nil, ErrReportNotFound
	}

	data, err := uc.cache.Get(ctx, ReportCacheKey)
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	var report ReconciliationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}

func (uc *ReconciliationUseCase) allSources(ctx context.Context, entityID string) ([]*domain.DebtSource, error) {
	var out []*domain.DebtSource
	for offset := 0; ; offset += reconcileBatchSize {
		page, err := uc.sourceRepo.ListByEntity(ctx, entityID, reconcileBatchSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < reconcileBatchSize {
			return out, nil
		}
	}
}

func (uc *ReconciliationUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}
	return uc.retrier.Retry(ctx, op)
}
