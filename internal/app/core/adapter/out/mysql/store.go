// Package mysql is the primary ledger store, backed by GORM. Atomic
// scopes map to database transactions; row locks come from
// SELECT ... FOR UPDATE so the sufficiency and status checks hold until
// commit.
package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psouza/walletcore/internal/app/core/domain"
	"github.com/psouza/walletcore/internal/app/core/usecase"
	pkgmysql "github.com/psouza/walletcore/pkg/mysql"
)

// sqlAccount maps the accounts table. The identity subsystem writes the
// profile columns; the ledger only touches balance and updated_at.
type sqlAccount struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	Name      string          `gorm:"type:varchar(120);not null"`
	Email     string          `gorm:"type:varchar(255);uniqueIndex;not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlMovement maps the movements table. Only status, kind and updated_at
// change after insert.
type sqlMovement struct {
	ID             string          `gorm:"primaryKey;type:char(36)"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Kind           string          `gorm:"type:varchar(16);not null"`
	Status         string          `gorm:"type:varchar(16);not null"`
	SenderID       *string         `gorm:"type:char(36);index"`
	ReceiverID     string          `gorm:"type:char(36);index;not null"`
	IdempotencyKey *string         `gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (*sqlMovement) TableName() string {
	return "movements"
}

// Store implements usecase.Store over a gorm handle. Inside an atomic
// scope the handle is the transaction; outside it is the pooled db.
type Store struct {
	db *gorm.DB
}

func NewStore(client *pkgmysql.Client) *Store {
	return &Store{db: client.DB()}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&sqlAccount{}, &sqlMovement{})
}

// Atomic wraps fn in one database transaction. gorm rolls back when fn
// errors; a nested call opens a savepoint inside the same transaction.
func (s *Store) Atomic(ctx context.Context, fn func(usecase.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Accounts() usecase.AccountStore {
	return &accountStore{db: s.db}
}

func (s *Store) Movements() usecase.MovementStore {
	return &movementStore{db: s.db}
}

var _ usecase.Store = (*Store)(nil)

type accountStore struct {
	db *gorm.DB
}

func (a *accountStore) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var row sqlAccount
	err := a.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return accountToDomain(&row)
}

func (a *accountStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var row sqlAccount
	err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return accountToDomain(&row)
}

func (a *accountStore) AddBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	result := a.db.WithContext(ctx).
		Model(&sqlAccount{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (a *accountStore) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.AccountSummary, error) {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	var rows []sqlAccount
	err := a.db.WithContext(ctx).
		Select("id", "name", "email").
		Where("id IN ?", raw).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make(map[uuid.UUID]domain.AccountSummary, len(rows))
	for i := range rows {
		id, err := uuid.Parse(rows[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[id] = domain.AccountSummary{ID: id, Name: rows[i].Name, Email: rows[i].Email}
	}
	return summaries, nil
}

func (a *accountStore) Create(ctx context.Context, account *domain.Account) error {
	row := sqlAccount{
		ID:      account.ID.String(),
		Name:    account.Name,
		Email:   account.Email,
		Balance: account.Balance,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	account.CreatedAt = row.CreatedAt
	account.UpdatedAt = row.UpdatedAt
	return nil
}

type movementStore struct {
	db *gorm.DB
}

func (m *movementStore) Create(ctx context.Context, movement *domain.Movement) error {
	row := movementFromDomain(movement)
	if err := m.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	// Reflect generated timestamps so the caller returns the persisted
	// record verbatim.
	movement.CreatedAt = row.CreatedAt
	movement.UpdatedAt = row.UpdatedAt
	return nil
}

func (m *movementStore) Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	var row sqlMovement
	err := m.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMovementNotFound
	}
	if err != nil {
		return nil, err
	}
	return movementToDomain(&row)
}

func (m *movementStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	var row sqlMovement
	err := m.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMovementNotFound
	}
	if err != nil {
		return nil, err
	}
	return movementToDomain(&row)
}

func (m *movementStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Movement, error) {
	var row sqlMovement
	err := m.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMovementNotFound
	}
	if err != nil {
		return nil, err
	}
	return movementToDomain(&row)
}

func (m *movementStore) Finalize(ctx context.Context, id uuid.UUID, status domain.MovementStatus, kind domain.MovementKind) error {
	result := m.db.WithContext(ctx).
		Model(&sqlMovement{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"status":     string(status),
			"kind":       string(kind),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMovementNotFound
	}
	return nil
}

func (m *movementStore) ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]domain.Movement, int64, error) {
	// Fresh chains per statement; gorm accumulates clauses on a shared one.
	filter := func() *gorm.DB {
		return m.db.WithContext(ctx).
			Model(&sqlMovement{}).
			Where("sender_id = ? OR receiver_id = ?", accountID.String(), accountID.String())
	}

	var total int64
	if err := filter().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []sqlMovement
	err := filter().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	movements := make([]domain.Movement, 0, len(rows))
	for i := range rows {
		movement, err := movementToDomain(&rows[i])
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, *movement)
	}
	return movements, total, nil
}

func accountToDomain(row *sqlAccount) (*domain.Account, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:        id,
		Name:      row.Name,
		Email:     row.Email,
		Balance:   row.Balance,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func movementFromDomain(movement *domain.Movement) *sqlMovement {
	row := &sqlMovement{
		ID:             movement.ID.String(),
		Amount:         movement.Amount,
		Kind:           string(movement.Kind),
		Status:         string(movement.Status),
		ReceiverID:     movement.ReceiverID.String(),
		IdempotencyKey: movement.IdempotencyKey,
	}
	if movement.SenderID != nil {
		s := movement.SenderID.String()
		row.SenderID = &s
	}
	return row
}

func movementToDomain(row *sqlMovement) (*domain.Movement, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	receiverID, err := uuid.Parse(row.ReceiverID)
	if err != nil {
		return nil, err
	}
	movement := &domain.Movement{
		ID:             id,
		Amount:         row.Amount,
		Kind:           domain.MovementKind(row.Kind),
		Status:         domain.MovementStatus(row.Status),
		ReceiverID:     receiverID,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.SenderID != nil {
		senderID, err := uuid.Parse(*row.SenderID)
		if err != nil {
			return nil, err
		}
		movement.SenderID = &senderID
	}
	return movement, nil
}
