package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/psouza/walletcore/internal/app/core/domain"
)

// LedgerEngine owns every balance mutation and movement write. Each call
// runs as one atomic scope against the store: all effects commit together
// or none do, and any failure comes back as a typed *domain.Error.
type LedgerEngine struct {
	store Store
	log   *slog.Logger
}

func NewLedgerEngine(store Store, log *slog.Logger) *LedgerEngine {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerEngine{store: store, log: log}
}

// CreateInput describes one requested movement. CallerID is the already
// resolved identity of the requester and becomes the sender on transfers.
// IdempotencyKey, when set, deduplicates retried submissions.
type CreateInput struct {
	Amount         decimal.Decimal
	Kind           domain.MovementKind
	ReceiverID     uuid.UUID
	CallerID       uuid.UUID
	IdempotencyKey string
}

// Create validates and executes a deposit or transfer.
//
// Preconditions run in order, first failure wins: positive amount, then
// for transfers no self-transfer and a non-empty sender, then (inside the
// scope, under a row lock) sender existence and balance sufficiency.
// On success the returned movement is the exact persisted record.
func (e *LedgerEngine) Create(ctx context.Context, in CreateInput) (*domain.Movement, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var senderID *uuid.UUID
	if in.Kind == domain.KindTransfer {
		if in.CallerID == in.ReceiverID {
			return nil, domain.ErrSelfTransfer
		}
		// Callers are resolved upstream; a transfer without a sender
		// would mint money.
		if in.CallerID == uuid.Nil {
			return nil, domain.ErrMissingSender
		}
		id := in.CallerID
		senderID = &id
	}

	var created *domain.Movement
	err := e.store.Atomic(ctx, func(s Store) error {
		if in.IdempotencyKey != "" {
			prior, err := s.Movements().GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if err != nil && !errors.Is(err, domain.ErrMovementNotFound) {
				return err
			}
			if prior != nil {
				e.log.Info("duplicate submission, returning prior movement",
					"idempotency_key", in.IdempotencyKey, "movement_id", prior.ID)
				created = prior
				return nil
			}
		}

		if in.Kind == domain.KindTransfer {
			// Lock the sender row before the sufficiency check so a
			// concurrent create against the same sender cannot observe
			// the same stale balance.
			sender, err := s.Accounts().GetForUpdate(ctx, *senderID)
			if err != nil {
				if errors.Is(err, domain.ErrAccountNotFound) {
					return domain.ErrSenderNotFound
				}
				return err
			}
			if !sender.CanPay(in.Amount) {
				return domain.ErrInsufficientBalance
			}
			if err := s.Accounts().AddBalance(ctx, *senderID, in.Amount.Neg()); err != nil {
				return err
			}
		}

		if err := s.Accounts().AddBalance(ctx, in.ReceiverID, in.Amount); err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return domain.ErrReceiverNotFound
			}
			return err
		}

		movement := &domain.Movement{
			ID:         uuid.New(),
			Amount:     in.Amount,
			Kind:       in.Kind,
			Status:     domain.StatusCompleted,
			SenderID:   senderID,
			ReceiverID: in.ReceiverID,
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			movement.IdempotencyKey = &key
		}
		if err := s.Movements().Create(ctx, movement); err != nil {
			return err
		}
		created = movement
		return nil
	})
	if err != nil {
		return nil, domain.WrapInfra(err)
	}

	e.log.Info("movement created",
		"movement_id", created.ID, "kind", created.Kind, "amount", created.Amount)
	return created, nil
}

// Revert undoes a completed movement. The movement row is re-read under a
// row lock inside the atomic scope, so two concurrent reverts of the same
// id cannot both pass the status check: the second observes REVERTED and
// fails, and balances change exactly once.
//
// Transfers get the inverse balance effect; deposits debit the receiver.
// No sufficiency check runs on the receiver, so a reversal may drive its
// balance negative.
func (e *LedgerEngine) Revert(ctx context.Context, movementID uuid.UUID) (bool, error) {
	if movementID == uuid.Nil {
		return false, domain.ErrMissingMovementID
	}

	err := e.store.Atomic(ctx, func(s Store) error {
		movement, err := s.Movements().GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if movement.Status == domain.StatusReverted {
			return domain.ErrAlreadyReverted
		}
		if !movement.Revertible() {
			return domain.ErrInvalidStateForReversal
		}

		switch movement.Kind {
		case domain.KindTransfer:
			// A transfer always carries a sender; a row without one is
			// corrupt and must not panic the engine.
			if movement.SenderID == nil {
				return domain.ErrMissingSender
			}
			if err := s.Accounts().AddBalance(ctx, *movement.SenderID, movement.Amount); err != nil {
				return err
			}
			if err := s.Accounts().AddBalance(ctx, movement.ReceiverID, movement.Amount.Neg()); err != nil {
				return err
			}
		case domain.KindDeposit:
			if err := s.Accounts().AddBalance(ctx, movement.ReceiverID, movement.Amount.Neg()); err != nil {
				return err
			}
		}
		// A REVERSAL-kind movement matches no branch: the status flips
		// below with no balance effect.

		return s.Movements().Finalize(ctx, movementID, domain.StatusReverted, domain.KindReversal)
	})
	if err != nil {
		return false, domain.WrapInfra(err)
	}

	e.log.Info("movement reverted", "movement_id", movementID)
	return true, nil
}
