package payment

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests.
// Charges start pending; SetStatus flips them.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]model.ChargeRequest
	states  map[string]model.SettlementState
	baseURL string
	// EchoMetadata controls whether PollStatus returns the charge custom data.
	EchoMetadata bool
}

func NewNoopPaymentGateway(baseURL string) *NoopPaymentGateway {
	if baseURL == "" {
		baseURL = "https://example.test/pay/"
	}
	return &NoopPaymentGateway{
		charges:      make(map[string]model.ChargeRequest),
		states:       make(map[string]model.SettlementState),
		baseURL:      baseURL,
		EchoMetadata: true,
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) Initiate(ctx context.Context, req model.ChargeRequest) (model.Checkout, error) {
	if err := req.Validate(); err != nil {
		return model.Checkout{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	token := g.next()
	g.charges[token] = req
	g.states[token] = model.SettlementPending
	return model.Checkout{RedirectURL: g.baseURL + token, Token: token}, nil
}

// SetStatus marks a token paid/pending/failed.
func (g *NoopPaymentGateway) SetStatus(token string, state model.SettlementState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[token] = state
}

// Complete settles token and returns the provider-style return url for it,
// with the token appended. Used by the dev checkout page.
func (g *NoopPaymentGateway) Complete(token string, state model.SettlementState) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.charges[token]
	if !ok {
		return "", false
	}
	g.states[token] = state
	u, err := url.Parse(req.ReturnURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), true
}

func (g *NoopPaymentGateway) PollStatus(ctx context.Context, token string) (model.Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.charges[token]
	if !ok {
		return model.Settlement{}, fmt.Errorf("%w: noop: token not found", domain.ErrGatewayUnavailable)
	}
	s := model.Settlement{State: g.states[token], Description: describe(req)}
	if s.State != model.SettlementPaid {
		return s, nil
	}
	s.Amount = req.Amount
	s.Reference = "ref-" + token
	if g.EchoMetadata {
		s.Metadata = map[string]string{
			MetaPurpose:      string(req.Purpose),
			MetaActorID:      req.ActorID,
			MetaSubjectID:    req.SubjectID,
			MetaSubjectTitle: req.SubjectTitle,
		}
	}
	return s, nil
}
