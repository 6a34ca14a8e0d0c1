package adapter

import (
	"context"

	"creator-paywall/internal/domain/model"
)

// IdentityProvider resolves the signed-in actor of the current request.
type IdentityProvider interface {
	CurrentActor(ctx context.Context) (*model.Actor, bool)
}
