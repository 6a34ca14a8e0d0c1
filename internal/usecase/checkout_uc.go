// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
	"creator-paywall/internal/domain/ports/repository"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
)

// InitiateInput is what the purchase form posts.
type InitiateInput struct {
	Purpose    model.Purpose
	ContentID  string
	PayerPhone string
	SessionID  string
}

type CheckoutOptions struct {
	BaseURL       string // public origin of this service
	ReturnPath    string
	ActivationFee int64
}

type CheckoutUseCase interface {
	Initiate(ctx context.Context, actor *model.Actor, in InitiateInput) (model.Checkout, error)
	ListPurchases(ctx context.Context, actorID string) ([]*model.Purchase, error)
}

var _ CheckoutUseCase = (*checkoutUC)(nil)

type checkoutUC struct {
	contents  repository.ContentRepository
	purchases repository.PurchaseRepository
	actors    repository.ActorRepository
	states    repository.CheckoutStateRepository
	gateway   adapter.PaymentGateway
	opts      CheckoutOptions
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	contents repository.ContentRepository,
	purchases repository.PurchaseRepository,
	actors repository.ActorRepository,
	states repository.CheckoutStateRepository,
	gateway adapter.PaymentGateway,
	opts CheckoutOptions,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		contents:  contents,
		purchases: purchases,
		actors:    actors,
		states:    states,
		gateway:   gateway,
		opts:      opts,
		log:       logger,
	}
}

// Initiate validates the purchase, opens a charge at the provider and stashes
// the checkout state for the return trip.
func (u *checkoutUC) Initiate(ctx context.Context, actor *model.Actor, in InitiateInput) (model.Checkout, error) {
	if actor == nil || actor.ID == "" {
		return model.Checkout{}, domain.ErrUnresolvedActor
	}
	ctx = logging.WithActorID(ctx, actor.ID)
	log := logging.With(ctx, u.log)

	req, err := u.buildCharge(ctx, actor, in)
	if err != nil {
		metrics.IncCheckout(string(in.Purpose), "rejected")
		return model.Checkout{}, err
	}

	co, err := u.gateway.Initiate(ctx, req)
	if err != nil {
		metrics.IncCheckout(string(req.Purpose), "error")
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Str("payer", logging.Redact(req.PayerPhone, false)).Msg("checkout: initiate failed")
		return model.Checkout{}, err
	}

	if in.SessionID != "" && u.states != nil {
		st := &model.CheckoutState{
			Purpose:      req.Purpose,
			ActorID:      actor.ID,
			SubjectID:    req.SubjectID,
			SubjectTitle: req.SubjectTitle,
			Amount:       req.Amount,
			Token:        co.Token,
			CreatedAt:    time.Now().UTC(),
		}
		if err := u.states.Save(ctx, in.SessionID, st); err != nil {
			log.Warn().Err(err).Msg("checkout: state not stashed")
		}
	}

	metrics.IncCheckout(string(req.Purpose), "ok")
	log.Info().Str("purpose", string(req.Purpose)).Str("token", co.Token).Int64("amount", req.Amount).Msg("checkout initiated")
	return co, nil
}

func (u *checkoutUC) buildCharge(ctx context.Context, actor *model.Actor, in InitiateInput) (model.ChargeRequest, error) {
	req := model.ChargeRequest{
		ActorID:          actor.ID,
		ActorEmail:       actor.Email,
		ActorDisplayName: actor.DisplayName,
		Purpose:          in.Purpose,
		PayerPhone:       strings.TrimSpace(in.PayerPhone),
	}

	switch in.Purpose {
	case model.PurposeContentPurchase:
		content, err := u.contents.FindByID(ctx, repository.NoTX, in.ContentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return req, domain.ErrContentUnavailable
			}
			return req, err
		}
		if !content.Purchasable() {
			return req, domain.ErrContentUnavailable
		}
		if content.BeneficiaryID == actor.ID {
			return req, domain.ErrOwnContent
		}
		if _, err := u.purchases.FindByActorAndSubject(ctx, repository.NoTX, actor.ID, content.ID); err == nil {
			return req, domain.ErrAlreadyPurchased
		} else if !errors.Is(err, domain.ErrNotFound) {
			return req, err
		}
		req.Amount = content.Price
		req.SubjectID = content.ID
		req.SubjectTitle = content.Title

	case model.PurposeCreatorActivation:
		a, err := u.actors.FindByID(ctx, repository.NoTX, actor.ID)
		if err != nil {
			return req, err
		}
		if a.IsCreator {
			return req, domain.ErrAlreadyCreator
		}
		req.Amount = u.opts.ActivationFee

	default:
		return req, domain.ErrInvalidArgument
	}

	returnURL, err := u.returnURL(req)
	if err != nil {
		return req, err
	}
	req.ReturnURL = returnURL
	return req, req.Validate()
}

func (u *checkoutUC) returnURL(req model.ChargeRequest) (string, error) {
	base, err := url.Parse(strings.TrimRight(u.opts.BaseURL, "/") + u.opts.ReturnPath)
	if err != nil {
		return "", fmt.Errorf("%w: return url: %v", domain.ErrInvalidArgument, err)
	}
	q := base.Query()
	q.Set(QueryPurpose, string(req.Purpose))
	if req.SubjectID != "" {
		q.Set(QuerySubjectID, req.SubjectID)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (u *checkoutUC) ListPurchases(ctx context.Context, actorID string) ([]*model.Purchase, error) {
	if actorID == "" {
		return nil, domain.ErrUnresolvedActor
	}
	return u.purchases.ListByActor(ctx, repository.NoTX, actorID)
}
