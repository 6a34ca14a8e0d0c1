// File: internal/usecase/correlation.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
)

// Names of the resolution steps, reported in Correlation.Strategy and metrics.
const (
	StrategyMetadata   = "metadata"
	StrategyQuery      = "query"
	StrategyState      = "checkout_state"
	StrategyTitlePrice = "title_price"
	StrategyPrice      = "price"
	StrategyGeneric    = "generic"
	StrategyActivation = "activation"
)

// Return-url query keys understood by the resolver.
const (
	QueryPurpose   = "purpose"
	QuerySubjectID = "subject_id"
	QueryActorID   = "actor_id"
	QueryTitle     = "title"
	QueryToken     = "token"
)

const heuristicLimit = 20

// matchResult is the three-way answer of a single strategy.
type matchResult int

const (
	notFound matchResult = iota
	found
	ambiguous
)

func (m matchResult) String() string {
	switch m {
	case found:
		return "found"
	case ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// ResolveInput is everything that survived the trip to the provider.
type ResolveInput struct {
	Settlement model.Settlement
	Query      url.Values
	SessionID  string
	// Token is the checkout token being reconciled. Checkout state saved for
	// a different token belongs to another checkout in the same session.
	Token string
	Actor *model.Actor // signed-in actor, nil for provider notifications
}

// hint is one source's view of the charge. Empty fields mean "unknown".
type hint struct {
	source    string
	purpose   model.Purpose
	actorID   string
	subjectID string
	title     string
}

type CorrelationResolver struct {
	contents repository.ContentRepository
	states   repository.CheckoutStateRepository
	log      *zerolog.Logger
}

func NewCorrelationResolver(contents repository.ContentRepository, states repository.CheckoutStateRepository, logger *zerolog.Logger) *CorrelationResolver {
	return &CorrelationResolver{contents: contents, states: states, log: logger}
}

// Resolve recovers what a settled payment was for. Sources are tried in a
// fixed order: echoed metadata, return-url query, checkout state, title and
// price heuristic, price heuristic. A content purchase with no recoverable
// subject degrades to a generic correlation. Only a missing actor is fatal.
func (r *CorrelationResolver) Resolve(ctx context.Context, in ResolveInput) (model.Correlation, error) {
	log := logging.With(ctx, r.log)

	state, foreign := r.stateHint(ctx, in.SessionID, in.Token)
	hints := []hint{
		metadataHint(in.Settlement.Metadata),
		queryHint(in.Query),
		state,
	}
	finish := func(c model.Correlation) {
		metrics.IncCorrelation(c.Strategy)
		if !foreign {
			r.clearState(ctx, in.SessionID)
		}
	}

	c := model.Correlation{Purpose: model.PurposeContentPurchase}
	for _, h := range hints {
		if h.purpose != "" {
			c.Purpose = h.purpose
			break
		}
	}
	for _, h := range hints {
		if h.actorID != "" {
			c.ActorID = h.actorID
			break
		}
	}
	if c.ActorID == "" && in.Actor != nil {
		c.ActorID = in.Actor.ID
	}
	if c.ActorID == "" {
		return model.Correlation{}, domain.ErrUnresolvedActor
	}

	if c.Purpose == model.PurposeCreatorActivation {
		c.Strategy = StrategyActivation
		finish(c)
		return c, nil
	}

	for _, h := range hints {
		if h.subjectID == "" {
			continue
		}
		ok, err := r.verify(ctx, h.subjectID)
		if err != nil {
			return model.Correlation{}, err
		}
		if ok {
			c.SubjectID, c.Strategy = h.subjectID, h.source
			finish(c)
			return c, nil
		}
		log.Warn().Str("source", h.source).Str("subject_id", h.subjectID).Msg("correlation: unknown subject id, falling back")
	}

	amount := in.Settlement.Amount
	if title := titleHint(hints, in.Settlement.Description); title != "" && amount > 0 {
		hits, err := r.contents.SearchByTitle(ctx, repository.NoTX, title, heuristicLimit)
		if err != nil {
			return model.Correlation{}, fmt.Errorf("search content by title: %w", err)
		}
		content, res := matchByTitle(hits, title, amount)
		log.Debug().Str("title", title).Int("hits", len(hits)).Stringer("result", res).Msg("correlation: title heuristic")
		if res == found {
			c.SubjectID, c.Strategy = content.ID, StrategyTitlePrice
			finish(c)
			return c, nil
		}
	}

	if amount > 0 {
		rows, err := r.contents.ListByPrice(ctx, repository.NoTX, amount, heuristicLimit)
		if err != nil {
			return model.Correlation{}, fmt.Errorf("list content by price: %w", err)
		}
		content, res := matchNewestByPrice(rows, amount)
		log.Debug().Int64("amount", amount).Int("rows", len(rows)).Stringer("result", res).Msg("correlation: price heuristic")
		if res == found {
			c.SubjectID, c.Strategy = content.ID, StrategyPrice
			finish(c)
			return c, nil
		}
	}

	log.Warn().Err(domain.ErrUnresolvedSubject).Int64("amount", amount).Msg("correlation: recording generic transaction")
	c.Strategy = StrategyGeneric
	finish(c)
	return c, nil
}

func (r *CorrelationResolver) verify(ctx context.Context, id string) (bool, error) {
	if _, err := r.contents.FindByID(ctx, repository.NoTX, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("verify subject %s: %w", id, err)
	}
	return true, nil
}

// stateHint reads the session's checkout state. State written for another
// token is reported as foreign and contributes nothing: the session cookie is
// shared by every tab, so a later checkout may have overwritten it.
func (r *CorrelationResolver) stateHint(ctx context.Context, sessionID, token string) (hint, bool) {
	h := hint{source: StrategyState}
	if sessionID == "" || r.states == nil {
		return h, false
	}
	st, err := r.states.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, r.log).Warn().Err(err).Msg("correlation: checkout state unreadable")
		}
		return h, false
	}
	if st.Token != "" && st.Token != token {
		logging.With(ctx, r.log).Info().Str("state_token", st.Token).Msg("correlation: checkout state belongs to another checkout, ignored")
		return h, true
	}
	h.purpose = st.Purpose
	h.actorID = st.ActorID
	h.subjectID = st.SubjectID
	h.title = st.SubjectTitle
	return h, false
}

// clearState drops the checkout state so a later checkout in the same
// session starts clean.
func (r *CorrelationResolver) clearState(ctx context.Context, sessionID string) {
	if sessionID == "" || r.states == nil {
		return
	}
	if err := r.states.Clear(ctx, sessionID); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("correlation: failed to clear checkout state")
	}
}

func metadataHint(meta map[string]string) hint {
	return hint{
		source:    StrategyMetadata,
		purpose:   model.ParsePurpose(meta["purpose"]),
		actorID:   strings.TrimSpace(meta["actor_id"]),
		subjectID: strings.TrimSpace(meta["subject_id"]),
		title:     strings.TrimSpace(meta["subject_title"]),
	}
}

func queryHint(q url.Values) hint {
	return hint{
		source:    StrategyQuery,
		purpose:   model.ParsePurpose(q.Get(QueryPurpose)),
		actorID:   strings.TrimSpace(q.Get(QueryActorID)),
		subjectID: strings.TrimSpace(q.Get(QuerySubjectID)),
		title:     strings.TrimSpace(q.Get(QueryTitle)),
	}
}

// titleHint picks the first title any source remembered, then the provider's
// free-text description.
func titleHint(hints []hint, description string) string {
	for _, h := range hints {
		if h.title != "" {
			return h.title
		}
	}
	return strings.TrimSpace(description)
}

// matchByTitle accepts the title hit whose price equals the settled amount,
// if exactly one exists. A title hit at another price is never accepted.
func matchByTitle(hits []*model.Content, title string, amount int64) (*model.Content, matchResult) {
	var priced *model.Content
	n := 0
	for _, c := range hits {
		if c.TitleMatches(title) && c.Price == amount {
			priced = c
			n++
		}
	}
	switch n {
	case 0:
		return nil, notFound
	case 1:
		return priced, found
	}
	return nil, ambiguous
}

// matchNewestByPrice takes the newest row whose price equals amount.
func matchNewestByPrice(rows []*model.Content, amount int64) (*model.Content, matchResult) {
	var newest *model.Content
	for _, c := range rows {
		if c.Price != amount {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, notFound
	}
	return newest, found
}
