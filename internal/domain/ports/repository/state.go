package repository

import (
	"context"

	"creator-paywall/internal/domain/model"
)

// CheckoutStateRepository stores the ephemeral checkout handoff for one
// browser session. Get returns domain.ErrNotFound when nothing is stashed.
type CheckoutStateRepository interface {
	Save(ctx context.Context, sessionID string, state *model.CheckoutState) error
	Get(ctx context.Context, sessionID string) (*model.CheckoutState, error)
	Clear(ctx context.Context, sessionID string) error
}
