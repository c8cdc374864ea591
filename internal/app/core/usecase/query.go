package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/psouza/walletcore/internal/app/core/domain"
)

const (
	// DefaultPageLimit is used when the requested limit is absent or
	// outside [MinPageLimit, MaxPageLimit]. Out-of-range values fall back
	// here silently instead of erroring.
	DefaultPageLimit = 10
	MinPageLimit     = 1
	MaxPageLimit     = 50
)

// MovementView is a movement denormalized with counterpart display fields
// for presentation. The ledger enriches but does not own name/email.
type MovementView struct {
	domain.Movement
	Sender   *domain.AccountSummary `json:"sender,omitempty"`
	Receiver *domain.AccountSummary `json:"receiver,omitempty"`
}

// MovementPage is one page of an account's movement history.
type MovementPage struct {
	Items []MovementView `json:"items"`
	Page  int            `json:"page"`
	First int            `json:"first"`
	Last  int            `json:"last"`
	Total int64          `json:"total"`
}

// List returns movements where the account is sender or receiver, newest
// first. page defaults to 1 when non-positive; limit outside [1, 50]
// falls back to 10. Read-only, no atomic scope.
func (e *LedgerEngine) List(ctx context.Context, accountID uuid.UUID, page, limit int) (*MovementPage, error) {
	if accountID == uuid.Nil {
		return nil, domain.ErrMissingAccountID
	}
	if page < 1 {
		page = 1
	}
	if limit < MinPageLimit || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}

	offset := (page - 1) * limit
	movements, total, err := e.store.Movements().ListByAccount(ctx, accountID, offset, limit)
	if err != nil {
		return nil, domain.WrapInfra(err)
	}

	views, err := e.enrich(ctx, movements)
	if err != nil {
		return nil, domain.WrapInfra(err)
	}

	last := int((total + int64(limit) - 1) / int64(limit))

	return &MovementPage{
		Items: views,
		Page:  page,
		First: 1,
		Last:  last,
		Total: total,
	}, nil
}

// enrich resolves sender/receiver summaries for a page in one batch.
func (e *LedgerEngine) enrich(ctx context.Context, movements []domain.Movement) ([]MovementView, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(movements)*2)
	for i := range movements {
		for _, id := range movements[i].InvolvedAccountIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	summaries := map[uuid.UUID]domain.AccountSummary{}
	if len(ids) > 0 {
		var err error
		summaries, err = e.store.Accounts().Summaries(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	views := make([]MovementView, 0, len(movements))
	for i := range movements {
		view := MovementView{Movement: movements[i]}
		if movements[i].SenderID != nil {
			if s, ok := summaries[*movements[i].SenderID]; ok {
				sum := s
				view.Sender = &sum
			}
		}
		if r, ok := summaries[movements[i].ReceiverID]; ok {
			sum := r
			view.Receiver = &sum
		}
		views = append(views, view)
	}
	return views, nil
}
