package repository

import (
	"context"

	"creator-paywall/internal/domain/model"
)

type ActorRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Actor, error)
	SetCreator(ctx context.Context, tx Tx, id string, creator bool) error
}
