package services

import (
	"context"
	"fmt"
	"log"

	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
)

// MinCreditCents mirrors the payment provider's minimum charge.
const MinCreditCents = 50

// WalletService applies the effect of confirmed external payments. It is
// the only writer of the wallet balance besides the reconciliation job,
// and both go through the transactional path so the two can never race on
// the same document.
type WalletService struct {
	store ports.TransactionalStore
}

func NewWalletService(store ports.TransactionalStore) *WalletService {
	return &WalletService{store: store}
}

// Credit adds a confirmed payment to the user's balance and returns the
// new balance. eventID is the provider's event id, logged for audit.
func (w *WalletService) Credit(ctx context.Context, userID string, amountCents int64, eventID string) (int64, error) {
	if amountCents < MinCreditCents {
		return 0, domain.ErrAmountTooSmall
	}

	var newBalance int64
	err := w.store.TransactionalUpdate(ctx, userID, func(doc *domain.UserDocument) (domain.PartialFields, error) {
		newBalance = doc.WalletBalanceCents + amountCents
		return domain.PartialFields{WalletBalanceCents: &newBalance}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet for %s: %w", userID, err)
	}

	log.Printf("[Wallet] Credited %d cents to user %s (event %s). New balance: %d",
		amountCents, userID, eventID, newBalance)
	return newBalance, nil
}

// Wallet reads the current financial state.
func (w *WalletService) Wallet(ctx context.Context, userID string) (*domain.WalletState, error) {
	doc, err := w.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	state := doc.Wallet()
	return &state, nil
}
