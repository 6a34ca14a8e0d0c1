package adapter

import (
	"context"

	"creator-paywall/internal/domain/model"
)

// PaymentGateway is the hex port for the mobile-money provider.
type PaymentGateway interface {
	Name() string

	// Initiate submits a charge and returns the provider checkout url and token.
	// A response without a redirect url is domain.ErrMissingRedirect.
	Initiate(ctx context.Context, req model.ChargeRequest) (model.Checkout, error)

	// PollStatus asks the provider for the settlement of a token. Only the
	// literals "paid" and "pending" map to Paid and Pending; anything else is Failed.
	// Transport and decode failures wrap domain.ErrGatewayUnavailable.
	PollStatus(ctx context.Context, token string) (model.Settlement, error)
}
