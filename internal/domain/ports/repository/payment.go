package repository

import (
	"context"

	"creator-paywall/internal/domain/model"
)

// -----------------------------
// Transactions
// -----------------------------

type TransactionRepository interface {
	// Save inserts a transaction. A second insert with the same provider
	// reference returns domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByReference(ctx context.Context, tx Tx, providerRef string) (*model.Transaction, error)
	ListByActor(ctx context.Context, tx Tx, actorID string) ([]*model.Transaction, error)
}

// -----------------------------
// Purchases
// -----------------------------

type PurchaseRepository interface {
	// Save inserts a purchase. A second purchase for the same (actor, subject)
	// returns domain.ErrAlreadyPurchased.
	Save(ctx context.Context, tx Tx, pu *model.Purchase) error
	FindByActorAndSubject(ctx context.Context, tx Tx, actorID, subjectID string) (*model.Purchase, error)
	ListByActor(ctx context.Context, tx Tx, actorID string) ([]*model.Purchase, error)
}
