package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind classifies a movement. Kinds are small string enums so they
// round-trip through JSON and the database without a mapping table.
type MovementKind string

const (
	// KindDeposit credits the receiver from outside the ledger.
	KindDeposit MovementKind = "DEPOSIT"
	// KindTransfer moves funds between two accounts.
	KindTransfer MovementKind = "TRANSFER"
	// KindReversal marks a movement whose balance effect has been undone.
	// It is never requested by a caller; revert stamps it onto the original
	// row, losing the original kind. Kept for compatibility with the
	// existing data set.
	KindReversal MovementKind = "REVERSAL"
)

// MovementStatus is the lifecycle state of a movement.
type MovementStatus string

const (
	StatusPending   MovementStatus = "PENDING"
	StatusCompleted MovementStatus = "COMPLETED"
	StatusReverted  MovementStatus = "REVERTED"
	StatusFailed    MovementStatus = "FAILED"
)

// Movement is a single recorded unit of money motion. Immutable after
// creation except for Status, Kind (on revert) and UpdatedAt. Only the
// ledger engine writes movements.
type Movement struct {
	ID             uuid.UUID       `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Kind           MovementKind    `json:"kind"`
	Status         MovementStatus  `json:"status"`
	SenderID       *uuid.UUID      `json:"senderId,omitempty"`
	ReceiverID     uuid.UUID       `json:"receiverId"`
	IdempotencyKey *string         `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Revertible reports whether the movement may still be reverted.
func (m *Movement) Revertible() bool {
	return m.Status == StatusCompleted
}

// InvolvedAccountIDs returns the account ids this movement touches,
// sender first when present.
func (m *Movement) InvolvedAccountIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if m.SenderID != nil {
		ids = append(ids, *m.SenderID)
	}
	ids = append(ids, m.ReceiverID)
	return ids
}
