package repository

import (
	"context"

	"creator-paywall/internal/domain/model"
)

// ContentRepository exposes the read projections the checkout flow needs.
type ContentRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Content, error)
	// SearchByTitle returns published content whose title contains the hint
	// (case-insensitive), newest first.
	SearchByTitle(ctx context.Context, tx Tx, hint string, limit int) ([]*model.Content, error)
	// ListByPrice returns published content with exactly this price, newest first.
	ListByPrice(ctx context.Context, tx Tx, price int64, limit int) ([]*model.Content, error)
	IncrementViews(ctx context.Context, tx Tx, id string) error
}
