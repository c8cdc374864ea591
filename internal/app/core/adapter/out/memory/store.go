// Package memory implements the ledger store in process memory, guarded
// by a single mutex. Atomic scopes are serialized: the scope clones the
// state up front and restores the clone when the closure fails, which
// gives the same all-or-nothing guarantee the mysql adapter gets from a
// database transaction. An optional WAL journal makes committed writes
// durable and is replayed on construction.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/psouza/walletcore/internal/app/core/domain"
	"github.com/psouza/walletcore/internal/app/core/usecase"
	"github.com/psouza/walletcore/pkg/wal"
)

// journal operation tags.
const (
	opCreateAccount  = "create_account"
	opAddBalance     = "add_balance"
	opCreateMovement = "create_movement"
	opFinalize       = "finalize"
)

// journalEntry is one replayable write. IdempotencyKey rides separately
// because the movement's JSON shape hides it.
type journalEntry struct {
	Op             string                `json:"op"`
	Account        *domain.Account       `json:"account,omitempty"`
	Movement       *domain.Movement      `json:"movement,omitempty"`
	IdempotencyKey *string               `json:"idempotencyKey,omitempty"`
	Target         uuid.UUID             `json:"target,omitempty"`
	Delta          decimal.Decimal       `json:"delta,omitempty"`
	Status         domain.MovementStatus `json:"status,omitempty"`
	Kind           domain.MovementKind   `json:"kind,omitempty"`
	At             time.Time             `json:"at,omitempty"`
}

type state struct {
	accounts  map[uuid.UUID]*domain.Account
	movements map[uuid.UUID]*domain.Movement
	// order holds movement ids oldest first. Creation is serialized by
	// the store mutex, so insertion order is createdAt order.
	order []uuid.UUID
}

func newState() *state {
	return &state{
		accounts:  make(map[uuid.UUID]*domain.Account),
		movements: make(map[uuid.UUID]*domain.Movement),
	}
}

func (st *state) clone() *state {
	copied := &state{
		accounts:  make(map[uuid.UUID]*domain.Account, len(st.accounts)),
		movements: make(map[uuid.UUID]*domain.Movement, len(st.movements)),
		order:     append([]uuid.UUID(nil), st.order...),
	}
	for id, account := range st.accounts {
		a := *account
		copied.accounts[id] = &a
	}
	for id, movement := range st.movements {
		m := *movement
		copied.movements[id] = &m
	}
	return copied
}

// Store implements usecase.Store in memory.
type Store struct {
	mu      sync.Mutex
	state   *state
	journal *wal.WAL
	// pending holds journal entries written inside the open atomic
	// scope; they reach the WAL only when the scope commits.
	pending []journalEntry
}

// NewStore builds an empty store. journal may be nil for tests.
func NewStore(journal *wal.WAL) (*Store, error) {
	s := &Store{state: newState(), journal: journal}
	if journal != nil {
		if err := s.recover(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recover replays the journal into a fresh state.
func (s *Store) recover() error {
	return s.journal.ReadAll(func(raw []byte) error {
		var entry journalEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode journal entry: %w", err)
		}
		return s.apply(entry)
	})
}

func (s *Store) apply(entry journalEntry) error {
	switch entry.Op {
	case opCreateAccount:
		a := *entry.Account
		s.state.accounts[a.ID] = &a
	case opAddBalance:
		account, ok := s.state.accounts[entry.Target]
		if !ok {
			return fmt.Errorf("journal references unknown account %s", entry.Target)
		}
		account.Balance = account.Balance.Add(entry.Delta)
		account.UpdatedAt = entry.At
	case opCreateMovement:
		m := *entry.Movement
		m.IdempotencyKey = entry.IdempotencyKey
		s.state.movements[m.ID] = &m
		s.state.order = append(s.state.order, m.ID)
	case opFinalize:
		movement, ok := s.state.movements[entry.Target]
		if !ok {
			return fmt.Errorf("journal references unknown movement %s", entry.Target)
		}
		movement.Status = entry.Status
		movement.Kind = entry.Kind
		movement.UpdatedAt = entry.At
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
	return nil
}

// record stages a journal entry for the open scope, or flushes it right
// away for writes outside any scope.
func (s *Store) record(scoped bool, entry journalEntry) error {
	if s.journal == nil {
		return nil
	}
	if scoped {
		s.pending = append(s.pending, entry)
		return nil
	}
	if err := s.journal.Write(entry); err != nil {
		return err
	}
	return s.journal.Flush()
}

// Atomic runs fn under the store mutex against live state, snapshotting
// first and restoring the snapshot when fn fails.
func (s *Store) Atomic(ctx context.Context, fn func(usecase.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	s.pending = s.pending[:0]

	err := fn(scopedStore{s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.state = snapshot
		s.pending = nil
		return err
	}

	if s.journal != nil {
		for _, entry := range s.pending {
			if werr := s.journal.Write(entry); werr != nil {
				s.journal.Discard()
				s.state = snapshot
				s.pending = nil
				return werr
			}
		}
		if werr := s.journal.Flush(); werr != nil {
			s.journal.Discard()
			s.state = snapshot
			s.pending = nil
			return werr
		}
	}
	s.pending = nil
	return nil
}

func (s *Store) Accounts() usecase.AccountStore {
	return accountStore{s: s}
}

func (s *Store) Movements() usecase.MovementStore {
	return movementStore{s: s}
}

var _ usecase.Store = (*Store)(nil)

// scopedStore is the view handed to an Atomic closure. The mutex is
// already held, so its accessors skip locking; a nested Atomic joins the
// open scope.
type scopedStore struct {
	s *Store
}

func (v scopedStore) Atomic(_ context.Context, fn func(usecase.Store) error) error {
	return fn(v)
}

func (v scopedStore) Accounts() usecase.AccountStore {
	return accountStore{s: v.s, scoped: true}
}

func (v scopedStore) Movements() usecase.MovementStore {
	return movementStore{s: v.s, scoped: true}
}

type accountStore struct {
	s      *Store
	scoped bool
}

func (a accountStore) lock() func() {
	if a.scoped {
		return func() {}
	}
	a.s.mu.Lock()
	return a.s.mu.Unlock
}

func (a accountStore) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	defer a.lock()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, ok := a.s.state.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// GetForUpdate behaves like Get: the scope mutex already excludes every
// other writer, which is the row lock's job in the mysql adapter.
func (a accountStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return a.Get(ctx, id)
}

func (a accountStore) AddBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	defer a.lock()()
	if err := ctx.Err(); err != nil {
		return err
	}
	account, ok := a.s.state.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	now := time.Now().UTC()
	account.Balance = account.Balance.Add(delta)
	account.UpdatedAt = now
	return a.s.record(a.scoped, journalEntry{Op: opAddBalance, Target: id, Delta: delta, At: now})
}

func (a accountStore) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.AccountSummary, error) {
	defer a.lock()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summaries := make(map[uuid.UUID]domain.AccountSummary, len(ids))
	for _, id := range ids {
		if account, ok := a.s.state.accounts[id]; ok {
			summaries[id] = account.Summary()
		}
	}
	return summaries, nil
}

func (a accountStore) Create(ctx context.Context, account *domain.Account) error {
	defer a.lock()()
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	copied := *account
	a.s.state.accounts[account.ID] = &copied
	return a.s.record(a.scoped, journalEntry{Op: opCreateAccount, Account: &copied})
}

type movementStore struct {
	s      *Store
	scoped bool
}

func (m movementStore) lock() func() {
	if m.scoped {
		return func() {}
	}
	m.s.mu.Lock()
	return m.s.mu.Unlock
}

func (m movementStore) Create(ctx context.Context, movement *domain.Movement) error {
	defer m.lock()()
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	movement.CreatedAt = now
	movement.UpdatedAt = now
	copied := *movement
	m.s.state.movements[movement.ID] = &copied
	m.s.state.order = append(m.s.state.order, movement.ID)
	return m.s.record(m.scoped, journalEntry{
		Op:             opCreateMovement,
		Movement:       &copied,
		IdempotencyKey: copied.IdempotencyKey,
	})
}

func (m movementStore) Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	defer m.lock()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	movement, ok := m.s.state.movements[id]
	if !ok {
		return nil, domain.ErrMovementNotFound
	}
	copied := *movement
	return &copied, nil
}

// GetForUpdate is Get under the scope mutex; see accountStore.GetForUpdate.
func (m movementStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	return m.Get(ctx, id)
}

func (m movementStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Movement, error) {
	defer m.lock()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, movement := range m.s.state.movements {
		if movement.IdempotencyKey != nil && *movement.IdempotencyKey == key {
			copied := *movement
			return &copied, nil
		}
	}
	return nil, domain.ErrMovementNotFound
}

func (m movementStore) Finalize(ctx context.Context, id uuid.UUID, status domain.MovementStatus, kind domain.MovementKind) error {
	defer m.lock()()
	if err := ctx.Err(); err != nil {
		return err
	}
	movement, ok := m.s.state.movements[id]
	if !ok {
		return domain.ErrMovementNotFound
	}
	now := time.Now().UTC()
	movement.Status = status
	movement.Kind = kind
	movement.UpdatedAt = now
	return m.s.record(m.scoped, journalEntry{Op: opFinalize, Target: id, Status: status, Kind: kind, At: now})
}

func (m movementStore) ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]domain.Movement, int64, error) {
	defer m.lock()()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	matching := make([]domain.Movement, 0)
	// Walk newest first.
	for i := len(m.s.state.order) - 1; i >= 0; i-- {
		movement := m.s.state.movements[m.s.state.order[i]]
		if movement.ReceiverID == accountID ||
			(movement.SenderID != nil && *movement.SenderID == accountID) {
			matching = append(matching, *movement)
		}
	}

	total := int64(len(matching))
	if offset >= len(matching) {
		return []domain.Movement{}, total, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], total, nil
}
