package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/usecase"
)

// Store is an in-memory backing for the Mem* repositories. Reads and writes
// copy records so callers never share state with the store, and a
// transaction that is rolled back restores the store to its state at Begin.
type Store struct {
	mu        sync.Mutex
	entities  map[string]*domain.Entity
	sources   map[string]*domain.DebtSource
	movements map[string]*domain.CashMovement
	entries   []*domain.LedgerEntry
	events    []*domain.OutboxEvent
	audits    []*domain.AuditLog
	seq       map[string]int
	next      int
}

func NewStore() *Store {
	return &Store{
		entities:  make(map[string]*domain.Entity),
		sources:   make(map[string]*domain.DebtSource),
		movements: make(map[string]*domain.CashMovement),
		seq:       make(map[string]int),
	}
}

type snapshot struct {
	entities  map[string]*domain.Entity
	sources   map[string]*domain.DebtSource
	movements map[string]*domain.CashMovement
	entries   []*domain.LedgerEntry
	events    []*domain.OutboxEvent
	audits    []*domain.AuditLog
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		entities:  make(map[string]*domain.Entity, len(s.entities)),
		sources:   make(map[string]*domain.DebtSource, len(s.sources)),
		movements: make(map[string]*domain.CashMovement, len(s.movements)),
		entries:   append([]*domain.LedgerEntry(nil), s.entries...),
		events:    append([]*domain.OutboxEvent(nil), s.events...),
		audits:    append([]*domain.AuditLog(nil), s.audits...),
	}
	for id, e := range s.entities {
		snap.entities[id] = cloneEntity(e)
	}
	for id, src := range s.sources {
		snap.sources[id] = cloneSource(src)
	}
	for id, m := range s.movements {
		c := *m
		snap.movements[id] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = snap.entities
	s.sources = snap.sources
	s.movements = snap.movements
	s.entries = snap.entries
	s.events = snap.events
	s.audits = snap.audits
}

func (s *Store) order(id string) int {
	if n, ok := s.seq[id]; ok {
		return n
	}
	s.next++
	s.seq[id] = s.next
	return s.next
}

// PutEntity seeds an entity.
func (s *Store) PutEntity(e *domain.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneEntity(e)
	if c.OpeningBalance == nil {
		c.OpeningBalance = c.Balance.Clone()
	}
	s.order(c.ID)
	s.entities[c.ID] = c
}

// PutSource seeds a debt source.
func (s *Store) PutSource(src *domain.DebtSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order(src.ID)
	s.sources[src.ID] = cloneSource(src)
}

// PutEntry seeds a ledger entry as if it had been written earlier.
func (s *Store) PutEntry(e *domain.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.entries = append(s.entries, &c)
}

// Entity returns a copy of the stored entity.
func (s *Store) Entity(id string) *domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		return cloneEntity(e)
	}
	return nil
}

// Source returns a copy of the stored debt source.
func (s *Store) Source(id string) *domain.DebtSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		return cloneSource(src)
	}
	return nil
}

// Movement returns a copy of the stored cash movement.
func (s *Store) Movement(id string) *domain.CashMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.movements[id]; ok {
		c := *m
		return &c
	}
	return nil
}

// Entries returns copies of every entry of the entity in write order.
func (s *Store) Entries(entityID string) []*domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.EntityID == entityID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// Events returns every stored outbox event.
func (s *Store) Events() []*domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), s.events...)
}

// Audits returns every stored audit log.
func (s *Store) Audits() []*domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuditLog(nil), s.audits...)
}

func cloneEntity(e *domain.Entity) *domain.Entity {
	c := *e
	c.Balance = e.Balance.Clone()
	if e.OpeningBalance != nil {
		c.OpeningBalance = e.OpeningBalance.Clone()
	}
	return &c
}

func cloneSource(s *domain.DebtSource) *domain.DebtSource {
	c := *s
	c.Items = append([]domain.LineItem(nil), s.Items...)
	c.Totals = make(map[domain.Currency]*domain.CurrencyTotals, len(s.Totals))
	for cur, t := range s.Totals {
		tc := *t
		c.Totals[cur] = &tc
	}
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// MemEntityRepository implements usecase.EntityRepository on a Store.
type MemEntityRepository struct {
	s *Store

	UpdateBalanceFunc func(ctx context.Context, tx usecase.Transaction, id string, balance domain.Amounts, updatedAt time.Time) error
}

func NewMemEntityRepository(s *Store) *MemEntityRepository {
	return &MemEntityRepository{s: s}
}

func (m *MemEntityRepository) Create(ctx context.Context, tx usecase.Transaction, entity *domain.Entity) error {
	m.s.PutEntity(entity)
	return nil
}

func (m *MemEntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	if e := m.s.Entity(id); e != nil {
		return e, nil
	}
	return nil, domain.ErrEntityNotFound
}

func (m *MemEntityRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Entity, error) {
	return m.GetByID(ctx, id)
}

func (m *MemEntityRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance domain.Amounts, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entities[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	e.Balance = balance.Clone()
	e.Version++
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MemEntityRepository) SetActive(ctx context.Context, tx usecase.Transaction, id string, active bool, updatedAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entities[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	e.Active = active
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MemEntityRepository) UpdateProfile(ctx context.Context, tx usecase.Transaction, id, name, phone string, updatedAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entities[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	e.Name = name
	e.Phone = phone
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MemEntityRepository) List(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.Entity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.Entity
	for _, e := range m.s.entities {
		if kind == "" || e.Kind == kind {
			out = append(out, cloneEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.s.seq[out[i].ID] < m.s.seq[out[j].ID] })
	return page(out, limit, offset), nil
}

// MemDebtSourceRepository implements usecase.DebtSourceRepository on a Store.
type MemDebtSourceRepository struct {
	s *Store

	UpdateFunc func(ctx context.Context, tx usecase.Transaction, source *domain.DebtSource) error
}

func NewMemDebtSourceRepository(s *Store) *MemDebtSourceRepository {
	return &MemDebtSourceRepository{s: s}
}

func (m *MemDebtSourceRepository) Create(ctx context.Context, tx usecase.Transaction, source *domain.DebtSource) error {
	m.s.PutSource(source)
	return nil
}

func (m *MemDebtSourceRepository) GetByID(ctx context.Context, id string) (*domain.DebtSource, error) {
	if src := m.s.Source(id); src != nil {
		return src, nil
	}
	return nil, domain.ErrSourceNotFound
}

func (m *MemDebtSourceRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.DebtSource, error) {
	return m.GetByID(ctx, id)
}

func (m *MemDebtSourceRepository) ListByEntityForUpdate(ctx context.Context, tx usecase.Transaction, entityID string) ([]*domain.DebtSource, error) {
	all := m.byEntity(entityID)
	out := all[:0]
	for _, src := range all {
		if src.Status != domain.SourceStatusDeleted {
			out = append(out, src)
		}
	}
	return out, nil
}

func (m *MemDebtSourceRepository) Update(ctx context.Context, tx usecase.Transaction, source *domain.DebtSource) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, source)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.sources[source.ID]; !ok {
		return domain.ErrSourceNotFound
	}
	c := cloneSource(source)
	c.Version++
	m.s.sources[source.ID] = c
	return nil
}

func (m *MemDebtSourceRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.DebtSource, error) {
	return page(m.byEntity(entityID), limit, offset), nil
}

func (m *MemDebtSourceRepository) ListByEntityAndKind(ctx context.Context, entityID string, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error) {
	var out []*domain.DebtSource
	for _, src := range m.byEntity(entityID) {
		if src.Kind == kind {
			out = append(out, src)
		}
	}
	return page(out, limit, offset), nil
}

func (m *MemDebtSourceRepository) ListOpen(ctx context.Context, kind domain.SourceKind, limit, offset int) ([]*domain.DebtSource, error) {
	m.s.mu.Lock()
	var out []*domain.DebtSource
	for _, src := range m.s.sources {
		if src.Kind != kind || !src.IsLive() {
			continue
		}
		for _, c := range domain.Currencies {
			if src.Debt(c).IsPositive() {
				out = append(out, cloneSource(src))
				break
			}
		}
	}
	m.s.mu.Unlock()
	domain.FIFO.Order(out)
	return page(out, limit, offset), nil
}

func (m *MemDebtSourceRepository) byEntity(entityID string) []*domain.DebtSource {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.DebtSource
	for _, src := range m.s.sources {
		if src.EntityID == entityID {
			out = append(out, cloneSource(src))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.s.seq[out[i].ID] < m.s.seq[out[j].ID] })
	return out
}

// MemEntryRepository implements usecase.EntryRepository on a Store.
type MemEntryRepository struct {
	s *Store

	CreateFunc func(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error
}

func NewMemEntryRepository(s *Store) *MemEntryRepository {
	return &MemEntryRepository{s: s}
}

func (m *MemEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, tx, entry); err != nil {
			return err
		}
	}
	m.s.PutEntry(entry)
	return nil
}

func (m *MemEntryRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	all := m.s.Entries(entityID)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return page(all, limit, offset), nil
}

func (m *MemEntryRepository) ListAllByEntity(ctx context.Context, entityID string) ([]*domain.LedgerEntry, error) {
	return m.s.Entries(entityID), nil
}

func (m *MemEntryRepository) ListAllByEntityTx(ctx context.Context, tx usecase.Transaction, entityID string) ([]*domain.LedgerEntry, error) {
	return m.s.Entries(entityID), nil
}

func (m *MemEntryRepository) ListByReference(ctx context.Context, tx usecase.Transaction, entityID, referenceID string) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, e := range m.s.Entries(entityID) {
		if e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemEntryRepository) SumUntil(ctx context.Context, entityID string, at time.Time) (domain.Amounts, error) {
	sum := domain.NewAmounts()
	for _, e := range m.s.Entries(entityID) {
		if !e.EventAt.After(at) {
			sum.Add(e.Currency, e.SignedAmount())
		}
	}
	return sum, nil
}

// MemCashMovementRepository implements usecase.CashMovementRepository on a Store.
type MemCashMovementRepository struct {
	s *Store
}

func NewMemCashMovementRepository(s *Store) *MemCashMovementRepository {
	return &MemCashMovementRepository{s: s}
}

func (m *MemCashMovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.CashMovement) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *movement
	m.s.order(c.ID)
	m.s.movements[c.ID] = &c
	return nil
}

func (m *MemCashMovementRepository) GetByID(ctx context.Context, id string) (*domain.CashMovement, error) {
	if mv := m.s.Movement(id); mv != nil {
		return mv, nil
	}
	return nil, domain.ErrCashMovementNotFound
}

func (m *MemCashMovementRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.CashMovement, error) {
	return m.GetByID(ctx, id)
}

func (m *MemCashMovementRepository) Update(ctx context.Context, tx usecase.Transaction, movement *domain.CashMovement) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.movements[movement.ID]; !ok {
		return domain.ErrCashMovementNotFound
	}
	c := *movement
	m.s.movements[c.ID] = &c
	return nil
}

func (m *MemCashMovementRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.CashMovement, error) {
	m.s.mu.Lock()
	var out []*domain.CashMovement
	for _, mv := range m.s.movements {
		if mv.EntityID == entityID && mv.Status != domain.CashMovementDeleted {
			c := *mv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.s.seq[out[i].ID] > m.s.seq[out[j].ID] })
	m.s.mu.Unlock()
	return page(out, limit, offset), nil
}

// MemLedgerRepository implements usecase.LedgerRepository on a Store.
type MemLedgerRepository struct {
	s *Store
}

func NewMemLedgerRepository(s *Store) *MemLedgerRepository {
	return &MemLedgerRepository{s: s}
}

func (m *MemLedgerRepository) CheckConsistency(ctx context.Context) (domain.Amounts, domain.Amounts, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	balanceDelta := domain.NewAmounts()
	for _, e := range m.s.entities {
		for _, c := range domain.Currencies {
			balanceDelta.Add(c, e.Balance.Get(c).Sub(e.OpeningBalance.Get(c)))
		}
	}
	entrySum := domain.NewAmounts()
	for _, e := range m.s.entries {
		entrySum.Add(e.Currency, e.SignedAmount())
	}
	return balanceDelta, entrySum, nil
}

// MemOutboxRepository implements usecase.OutboxRepository on a Store.
type MemOutboxRepository struct {
	s *Store
}

func NewMemOutboxRepository(s *Store) *MemOutboxRepository {
	return &MemOutboxRepository{s: s}
}

func (m *MemOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *event
	m.s.events = append(m.s.events, &c)
	return nil
}

func (m *MemOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.s.events {
		if !e.Published {
			c := *e
			out = append(out, &c)
		}
	}
	return page(out, limit, 0), nil
}

func (m *MemOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.events {
		if e.ID == id {
			at := publishedAt
			e.Published = true
			e.PublishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (m *MemOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.s.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			c := *e
			out = append(out, &c)
		}
	}
	return page(out, limit, offset), nil
}

func (m *MemOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	kept := m.s.events[:0]
	for _, e := range m.s.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.s.events = kept
	return nil
}

// MemAuditRepository implements usecase.AuditRepository on a Store.
type MemAuditRepository struct {
	s *Store
}

func NewMemAuditRepository(s *Store) *MemAuditRepository {
	return &MemAuditRepository{s: s}
}

func (m *MemAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.audits = append(m.s.audits, log)
	return nil
}

func (m *MemAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	return m.Create(ctx, log)
}

func (m *MemAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domain.AuditLog
	for _, a := range m.s.audits {
		if filter.ActorID != "" && a.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && a.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && a.ResourceID != filter.ResourceID {
			continue
		}
		out = append(out, a)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MemAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	return m.List(ctx, domain.AuditFilter{ResourceType: resourceType, ResourceID: resourceID})
}

// MemTransactionManager hands out transactions that restore the Store when
// rolled back before commit.
type MemTransactionManager struct {
	s *Store

	BeginFunc  func(ctx context.Context) (usecase.Transaction, error)
	CommitFunc func(ctx context.Context) error

	Begun     int
	Committed int
}

func NewMemTransactionManager(s *Store) *MemTransactionManager {
	return &MemTransactionManager{s: s}
}

func (m *MemTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.Begun++
	return &memTransaction{mgr: m, snap: m.s.snapshot()}, nil
}

type memTransaction struct {
	mgr  *MemTransactionManager
	snap snapshot
	done bool
}

func (t *memTransaction) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	if t.mgr.CommitFunc != nil {
		if err := t.mgr.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.done = true
	t.mgr.Committed++
	return nil
}

func (t *memTransaction) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.mgr.s.restore(t.snap)
	return nil
}

// SequentialIDGenerator returns id-0001, id-0002, ...
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// MemCache implements usecase.Cache.
type MemCache struct {
	mu   sync.Mutex
	data map[string][]byte

	SetFunc func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func NewMemCache() *MemCache {
	return &MemCache{data: make(map[string][]byte)}
}

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *MemCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.SetFunc != nil {
		return c.SetFunc(ctx, key, value, ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *MemCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// CountingRetrier runs each operation up to Attempts times and records how
// many calls it made.
type CountingRetrier struct {
	Attempts int
	Calls    int
}

func (r *CountingRetrier) Retry(ctx context.Context, operation func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		r.Calls++
		if err = operation(); err == nil {
			return nil
		}
	}
	return err
}

// Ledger bundles a Store with every repository wired to it.
type Ledger struct {
	Store      *Store
	Entities   *MemEntityRepository
	Sources    *MemDebtSourceRepository
	Entries    *MemEntryRepository
	Movements  *MemCashMovementRepository
	LedgerRepo *MemLedgerRepository
	Outbox     *MemOutboxRepository
	Audit      *MemAuditRepository
	TxManager  *MemTransactionManager
	IDs        *SequentialIDGenerator
}

// NewLedger returns a fresh in-memory ledger.
func NewLedger() *Ledger {
	s := NewStore()
	return &Ledger{
		Store:      s,
		Entities:   NewMemEntityRepository(s),
		Sources:    NewMemDebtSourceRepository(s),
		Entries:    NewMemEntryRepository(s),
		Movements:  NewMemCashMovementRepository(s),
		LedgerRepo: NewMemLedgerRepository(s),
		Outbox:     NewMemOutboxRepository(s),
		Audit:      NewMemAuditRepository(s),
		TxManager:  NewMemTransactionManager(s),
		IDs:        NewSequentialIDGenerator("id"),
	}
}

// Amounts builds domain amounts from UZS and USD strings.
func Amounts(uzs, usd string) domain.Amounts {
	return domain.Amounts{
		domain.CurrencyUZS: decimal.RequireFromString(uzs),
		domain.CurrencyUSD: decimal.RequireFromString(usd),
	}
}
