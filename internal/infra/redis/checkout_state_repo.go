package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
)

var _ repository.CheckoutStateRepository = (*CheckoutStateRepo)(nil)

// CheckoutStateRepo keeps the checkout handoff of one browser session in Redis.
type CheckoutStateRepo struct {
	client KV
	ttl    time.Duration
}

func NewCheckoutStateRepo(client KV, ttl time.Duration) *CheckoutStateRepo {
	if ttl <= 0 {
		ttl = 30 * time.Minute // long enough for a mobile-money approval on the handset
	}
	return &CheckoutStateRepo{client: client, ttl: ttl}
}

func (s *CheckoutStateRepo) key(sessionID string) string {
	return fmt.Sprintf("checkout_state:%s", sessionID)
}

func (s *CheckoutStateRepo) Save(ctx context.Context, sessionID string, state *model.CheckoutState) error {
	if sessionID == "" || state == nil {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Put(ctx, s.key(sessionID), data, s.ttl)
}

func (s *CheckoutStateRepo) Get(ctx context.Context, sessionID string) (*model.CheckoutState, error) {
	if sessionID == "" {
		return nil, domain.ErrNotFound
	}
	data, err := s.client.Fetch(ctx, s.key(sessionID))
	if err != nil {
		return nil, err
	}
	var state model.CheckoutState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode checkout state: %w", err)
	}
	return &state, nil
}

func (s *CheckoutStateRepo) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.client.Drop(ctx, s.key(sessionID))
}
