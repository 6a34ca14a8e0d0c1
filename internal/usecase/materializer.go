// File: internal/usecase/materializer.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
)

// PurchaseMaterializer turns a settled, correlated payment into rows.
//
// The inserts are not wrapped in one storage transaction. Instead every step
// can be re-run: the transaction is keyed by provider reference and the
// purchase by (actor, subject), so a crash between the two inserts is repaired
// by the next run.
type PurchaseMaterializer struct {
	transactions repository.TransactionRepository
	purchases    repository.PurchaseRepository
	contents     repository.ContentRepository
	actors       repository.ActorRepository
	currency     string
	log          *zerolog.Logger
}

func NewPurchaseMaterializer(
	transactions repository.TransactionRepository,
	purchases repository.PurchaseRepository,
	contents repository.ContentRepository,
	actors repository.ActorRepository,
	currency string,
	logger *zerolog.Logger,
) *PurchaseMaterializer {
	return &PurchaseMaterializer{
		transactions: transactions,
		purchases:    purchases,
		contents:     contents,
		actors:       actors,
		currency:     currency,
		log:          logger,
	}
}

// Materialize persists one Transaction and, for a known subject, one Purchase.
// The transaction is always recorded, so a second settlement for a subject the
// actor already owns is kept as money received; the outcome is then
// ErrAlreadyPurchased with the existing purchase. A failed creator flag update
// yields OutcomePartialActivation and a nil error.
func (m *PurchaseMaterializer) Materialize(ctx context.Context, c model.Correlation, s model.Settlement) (model.Outcome, error) {
	if !s.IsPaid() {
		return model.Outcome{}, domain.ErrNotSettled
	}
	if c.ActorID == "" {
		return model.Outcome{}, domain.ErrUnresolvedActor
	}
	if s.Reference == "" || s.Amount <= 0 {
		return model.Outcome{}, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, m.log)

	tr, err := m.recordTransaction(ctx, c, s)
	if err != nil {
		return model.Outcome{}, err
	}
	out := model.Outcome{SubjectID: c.SubjectID, Transaction: tr}

	switch {
	case c.Purpose == model.PurposeCreatorActivation:
		out.Kind = model.OutcomeCompleted
		if err := m.actors.SetCreator(ctx, repository.NoTX, c.ActorID, true); err != nil {
			log.Error().Err(err).Str("reference", s.Reference).Msg("materialize: payment received but creator flag not set")
			out.Kind = model.OutcomePartialActivation
			out.Reason = fmt.Sprintf("%v: payment %s", domain.ErrPartialActivation, s.Reference)
		}

	case c.SubjectID == "":
		out.Kind = model.OutcomeGeneric
		log.Warn().Str("transaction_id", tr.ID).Msg("materialize: generic transaction without purchase")

	default:
		existing, err := m.purchases.FindByActorAndSubject(ctx, repository.NoTX, c.ActorID, c.SubjectID)
		switch {
		case err == nil:
			if existing.TransactionID != tr.ID {
				log.Error().
					Str("reference", s.Reference).
					Str("transaction_id", tr.ID).
					Str("subject_id", c.SubjectID).
					Msg("materialize: second payment for an owned subject, transaction kept without purchase")
			}
			metrics.IncMaterialize(string(model.OutcomeAlreadyPurchased))
			return model.Outcome{Kind: model.OutcomeAlreadyPurchased, SubjectID: c.SubjectID, Transaction: tr, Purchase: existing}, domain.ErrAlreadyPurchased
		case !errors.Is(err, domain.ErrNotFound):
			return model.Outcome{}, fmt.Errorf("check existing purchase: %w", err)
		}

		pu := &model.Purchase{
			ID:            uuid.NewString(),
			ActorID:       c.ActorID,
			SubjectID:     c.SubjectID,
			TransactionID: tr.ID,
			AmountPaid:    s.Amount,
			CreatedAt:     time.Now().UTC(),
		}
		if err := m.purchases.Save(ctx, repository.NoTX, pu); err != nil {
			if errors.Is(err, domain.ErrAlreadyPurchased) {
				metrics.IncMaterialize(string(model.OutcomeAlreadyPurchased))
				return model.Outcome{Kind: model.OutcomeAlreadyPurchased, SubjectID: c.SubjectID, Transaction: tr}, err
			}
			return model.Outcome{}, fmt.Errorf("save purchase: %w", err)
		}
		if err := m.contents.IncrementViews(ctx, repository.NoTX, c.SubjectID); err != nil {
			log.Warn().Err(err).Str("subject_id", c.SubjectID).Msg("materialize: view counter not updated")
		}
		out.Kind = model.OutcomeCompleted
		out.Purchase = pu
	}

	metrics.IncMaterialize(string(out.Kind))
	return out, nil
}

// recordTransaction inserts the transaction or returns the one already stored
// under the same provider reference.
func (m *PurchaseMaterializer) recordTransaction(ctx context.Context, c model.Correlation, s model.Settlement) (*model.Transaction, error) {
	existing, err := m.transactions.FindByReference(ctx, repository.NoTX, s.Reference)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find transaction: %w", err)
	}

	tr := &model.Transaction{
		ID:                ulid.Make().String(),
		ActorID:           c.ActorID,
		Amount:            s.Amount,
		Kind:              c.Purpose,
		Status:            model.TransactionStatusPaid,
		ProviderReference: s.Reference,
		CreatedAt:         time.Now().UTC(),
	}
	if c.SubjectID != "" {
		subject := c.SubjectID
		tr.SubjectID = &subject
		if content, err := m.contents.FindByID(ctx, repository.NoTX, c.SubjectID); err == nil {
			owner := content.BeneficiaryID
			tr.BeneficiaryID = &owner
		}
	}

	if err := m.transactions.Save(ctx, repository.NoTX, tr); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return m.transactions.FindByReference(ctx, repository.NoTX, s.Reference)
		}
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	metrics.AddRevenue(m.currency, string(c.Purpose), s.Amount)
	return tr, nil
}
