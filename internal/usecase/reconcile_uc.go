// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
)

type ReconcileState string

const (
	StateChecking ReconcileState = "checking"
	StateSuccess  ReconcileState = "success"
	StatePending  ReconcileState = "pending"
	StateFailed   ReconcileState = "failed"
	StateError    ReconcileState = "error"
)

// RecoveryAction is the single next step offered with a terminal state.
type RecoveryAction string

const (
	ActionViewPurchases  RecoveryAction = "view_purchases"
	ActionRetryCheckout  RecoveryAction = "retry_checkout"
	ActionGoHome         RecoveryAction = "go_home"
	ActionContactSupport RecoveryAction = "contact_support"
)

// Message keys of the terminal states, resolved by the i18n translator.
const (
	MsgSuccess          = "reconcile.success"
	MsgSuccessGeneric   = "reconcile.success_generic"
	MsgAlreadyPurchased = "reconcile.already_purchased"
	MsgActivated        = "reconcile.activated"
	MsgPartial          = "reconcile.partial_activation"
	MsgPending          = "reconcile.pending"
	MsgFailed           = "reconcile.failed"
	MsgError            = "reconcile.error"
	MsgMissingToken     = "reconcile.missing_token"
)

// ReconcileInput is one landing on the return url, or one provider notification.
type ReconcileInput struct {
	Token     string
	Query     url.Values
	SessionID string
	Source    string // "return" or "webhook"
}

// ReconcileResult is the terminal state plus what the page should show.
// Label and description are message keys: MsgKey+".label" and MsgKey+".description".
type ReconcileResult struct {
	State         ReconcileState
	MsgKey        string
	Action        RecoveryAction
	Outcome       *model.Outcome
	RedirectTo    string
	RedirectAfter time.Duration
	Err           error
}

func (r ReconcileResult) LabelKey() string       { return r.MsgKey + ".label" }
func (r ReconcileResult) DescriptionKey() string { return r.MsgKey + ".description" }

// ReconcileOptions carries the configurable parts of the controller.
type ReconcileOptions struct {
	PollTimeout   time.Duration
	PurchasesPath string
	RedirectDelay time.Duration
}

type ReconcileUseCase interface {
	Reconcile(ctx context.Context, in ReconcileInput) ReconcileResult
}

var _ ReconcileUseCase = (*reconcileUC)(nil)

type reconcileUC struct {
	gateway      adapter.PaymentGateway
	identity     adapter.IdentityProvider
	resolver     *CorrelationResolver
	materializer *PurchaseMaterializer
	opts         ReconcileOptions
	log          *zerolog.Logger
}

func NewReconcileUseCase(
	gateway adapter.PaymentGateway,
	identity adapter.IdentityProvider,
	resolver *CorrelationResolver,
	materializer *PurchaseMaterializer,
	opts ReconcileOptions,
	logger *zerolog.Logger,
) *reconcileUC {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = 3 * time.Second
	}
	if opts.PurchasesPath == "" {
		opts.PurchasesPath = "/my-purchases"
	}
	return &reconcileUC{
		gateway:      gateway,
		identity:     identity,
		resolver:     resolver,
		materializer: materializer,
		opts:         opts,
		log:          logger,
	}
}

// Reconcile runs one pass of Checking and always lands in a terminal state.
// It never re-polls; a pending payment is reported as such.
func (u *reconcileUC) Reconcile(ctx context.Context, in ReconcileInput) ReconcileResult {
	ctx = logging.WithToken(ctx, in.Token)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "ReconcileUC.Reconcile")()

	res := u.reconcile(ctx, in)
	metrics.IncReconcile(string(res.State), in.Source)

	ev := log.Info()
	if res.State == StateError {
		ev = log.Error().Err(res.Err)
	}
	ev.Str("state", string(res.State)).Str("source", in.Source).Msg("payment reconciled")
	return res
}

func (u *reconcileUC) reconcile(ctx context.Context, in ReconcileInput) ReconcileResult {
	if in.Token == "" {
		return ReconcileResult{State: StateError, MsgKey: MsgMissingToken, Action: ActionGoHome, Err: domain.ErrMissingToken}
	}

	pollCtx, cancel := context.WithTimeout(ctx, u.opts.PollTimeout)
	s, err := u.gateway.PollStatus(pollCtx, in.Token)
	cancel()
	if err != nil {
		return errorResult(err)
	}

	switch s.State {
	case model.SettlementPending:
		return ReconcileResult{State: StatePending, MsgKey: MsgPending, Action: ActionViewPurchases}
	case model.SettlementPaid:
	default:
		return ReconcileResult{State: StateFailed, MsgKey: MsgFailed, Action: ActionRetryCheckout}
	}

	// Some providers omit the reference; the token is unique per checkout.
	if s.Reference == "" {
		s.Reference = in.Token
	}

	var actor *model.Actor
	if u.identity != nil {
		actor, _ = u.identity.CurrentActor(ctx)
	}
	c, err := u.resolver.Resolve(ctx, ResolveInput{Settlement: s, Query: in.Query, SessionID: in.SessionID, Token: in.Token, Actor: actor})
	if err != nil {
		return errorResult(err)
	}

	out, err := u.materializer.Materialize(logging.WithActorID(ctx, c.ActorID), c, s)
	if err != nil && !errors.Is(err, domain.ErrAlreadyPurchased) {
		return errorResult(err)
	}
	return u.successResult(out)
}

func (u *reconcileUC) successResult(out model.Outcome) ReconcileResult {
	res := ReconcileResult{State: StateSuccess, Outcome: &out}
	switch {
	case out.Kind == model.OutcomePartialActivation:
		res.MsgKey, res.Action = MsgPartial, ActionContactSupport
	case out.Transaction != nil && out.Transaction.Kind == model.PurposeCreatorActivation:
		res.MsgKey, res.Action = MsgActivated, ActionGoHome
	case !out.HasSubject():
		res.MsgKey, res.Action = MsgSuccessGeneric, ActionViewPurchases
	default:
		res.MsgKey, res.Action = MsgSuccess, ActionViewPurchases
		if out.Kind == model.OutcomeAlreadyPurchased {
			res.MsgKey = MsgAlreadyPurchased
		}
		res.RedirectTo = u.opts.PurchasesPath
		res.RedirectAfter = u.opts.RedirectDelay
	}
	return res
}

func errorResult(err error) ReconcileResult {
	return ReconcileResult{State: StateError, MsgKey: MsgError, Action: ActionRetryCheckout, Err: err}
}
