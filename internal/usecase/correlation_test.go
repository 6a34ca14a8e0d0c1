//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/usecase"
)

func TestCorrelationResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("should use echoed metadata first", func(t *testing.T) {
		contents := NewMockContentRepo(published("c1", "creator", "Sunset", 500, time.Hour))
		states := NewMockStateRepo()
		_ = states.Save(ctx, "sess", &model.CheckoutState{ActorID: "buyer", SubjectID: "other"})
		r := usecase.NewCorrelationResolver(contents, states, newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{
			Settlement: paid(500, "ref", map[string]string{"purpose": "content_purchase", "subject_id": "c1", "actor_id": "buyer"}),
			SessionID:  "sess",
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "c1" || c.Strategy != usecase.StrategyMetadata || c.ActorID != "buyer" {
			t.Errorf("unexpected correlation %+v", c)
		}
		if len(states.Cleared) != 1 || states.Cleared[0] != "sess" {
			t.Errorf("expected checkout state to be cleared, got %v", states.Cleared)
		}
	})

	t.Run("should resolve from checkout state without touching heuristics", func(t *testing.T) {
		contents := NewMockContentRepo(
			published("X", "creator", "Mountains", 500, time.Hour),
			published("Y", "creator", "Mountains", 500, time.Minute),
		)
		states := NewMockStateRepo()
		_ = states.Save(ctx, "sess", &model.CheckoutState{Purpose: model.PurposeContentPurchase, ActorID: "buyer", SubjectID: "X"})
		r := usecase.NewCorrelationResolver(contents, states, newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: paid(500, "ref", nil), SessionID: "sess"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "X" || c.Strategy != usecase.StrategyState {
			t.Errorf("unexpected correlation %+v", c)
		}
		if contents.SearchCalls != 0 || contents.PriceCalls != 0 {
			t.Errorf("heuristics must not run, got %d title and %d price lookups", contents.SearchCalls, contents.PriceCalls)
		}
		if _, err := states.Get(ctx, "sess"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected state to be gone, got %v", err)
		}
	})

	t.Run("should skip an unknown metadata subject and use the query", func(t *testing.T) {
		contents := NewMockContentRepo(published("c2", "creator", "Rain", 300, time.Hour))
		r := usecase.NewCorrelationResolver(contents, NewMockStateRepo(), newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{
			Settlement: paid(300, "ref", map[string]string{"subject_id": "deleted", "actor_id": "buyer"}),
			Query:      url.Values{"subject_id": {"c2"}},
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "c2" || c.Strategy != usecase.StrategyQuery {
			t.Errorf("unexpected correlation %+v", c)
		}
	})

	t.Run("should disambiguate title hits by price", func(t *testing.T) {
		contents := NewMockContentRepo(
			published("cheap", "creator", "Sunset", 300, time.Hour),
			published("dear", "creator", "Sunset", 500, 2*time.Hour),
		)
		r := usecase.NewCorrelationResolver(contents, NewMockStateRepo(), newTestLogger())

		s := paid(500, "ref", nil)
		s.Description = "Sunset"
		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: s, Actor: &model.Actor{ID: "buyer"}})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "dear" || c.Strategy != usecase.StrategyTitlePrice {
			t.Errorf("unexpected correlation %+v", c)
		}
		if c.ActorID != "buyer" {
			t.Errorf("expected current actor fallback, got %q", c.ActorID)
		}
	})

	t.Run("should fall back to the newest item at the settled price", func(t *testing.T) {
		contents := NewMockContentRepo(
			published("older", "creator", "Beach", 700, 3*time.Hour),
			published("newer", "creator", "Forest", 700, time.Hour),
			published("other", "creator", "Desert", 900, time.Minute),
		)
		r := usecase.NewCorrelationResolver(contents, NewMockStateRepo(), newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{
			Settlement: paid(700, "ref", map[string]string{"actor_id": "buyer"}),
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "newer" || c.Strategy != usecase.StrategyPrice {
			t.Errorf("unexpected correlation %+v", c)
		}
	})

	t.Run("should degrade to generic when nothing matches", func(t *testing.T) {
		contents := NewMockContentRepo()
		states := NewMockStateRepo()
		r := usecase.NewCorrelationResolver(contents, states, newTestLogger())

		s := paid(500, "ref", map[string]string{"actor_id": "buyer"})
		s.Description = "Sunset"
		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: s, SessionID: "sess"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !c.IsGeneric() || c.Strategy != usecase.StrategyGeneric {
			t.Errorf("expected generic correlation, got %+v", c)
		}
		if contents.SearchCalls != 1 || contents.PriceCalls != 1 {
			t.Errorf("expected both heuristics to run once, got %d/%d", contents.SearchCalls, contents.PriceCalls)
		}
		if len(states.Cleared) != 1 {
			t.Errorf("generic resolution should clear state too")
		}
	})

	t.Run("should fail when no actor can be found", func(t *testing.T) {
		r := usecase.NewCorrelationResolver(NewMockContentRepo(), NewMockStateRepo(), newTestLogger())
		_, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: paid(500, "ref", map[string]string{"subject_id": "c1"})})
		if !errors.Is(err, domain.ErrUnresolvedActor) {
			t.Fatalf("expected ErrUnresolvedActor, got %v", err)
		}
	})

	t.Run("should not search content for creator activation", func(t *testing.T) {
		contents := NewMockContentRepo(published("c1", "creator", "Sunset", 1000, time.Hour))
		r := usecase.NewCorrelationResolver(contents, NewMockStateRepo(), newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{
			Settlement: paid(1000, "ref", nil),
			Query:      url.Values{"purpose": {"creator_activation"}, "actor_id": {"buyer"}},
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.Purpose != model.PurposeCreatorActivation || c.SubjectID != "" {
			t.Errorf("unexpected correlation %+v", c)
		}
		if contents.SearchCalls+contents.PriceCalls != 0 {
			t.Error("activation must not run content heuristics")
		}
	})

	t.Run("should succeed when the state cannot be cleared", func(t *testing.T) {
		states := NewMockStateRepo()
		states.ClearErr = errors.New("redis down")
		_ = states.Save(ctx, "sess", &model.CheckoutState{ActorID: "buyer", SubjectID: "c1"})
		r := usecase.NewCorrelationResolver(NewMockContentRepo(published("c1", "creator", "Sunset", 500, time.Hour)), states, newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: paid(500, "ref", nil), SessionID: "sess"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "c1" {
			t.Errorf("unexpected subject %q", c.SubjectID)
		}
	})

	t.Run("should ignore checkout state saved for another token", func(t *testing.T) {
		contents := NewMockContentRepo(
			published("a", "creator", "Lagoon", 300, 2*time.Hour),
			published("b", "creator", "Harbour", 500, time.Hour),
		)
		states := NewMockStateRepo()
		_ = states.Save(ctx, "sess", &model.CheckoutState{
			Purpose: model.PurposeContentPurchase, ActorID: "buyer", SubjectID: "b", Amount: 500, Token: "tok-b",
		})
		r := usecase.NewCorrelationResolver(contents, states, newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{
			Settlement: paid(300, "ref-a", nil),
			SessionID:  "sess",
			Token:      "tok-a",
			Actor:      &model.Actor{ID: "buyer"},
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID == "b" || c.Strategy == usecase.StrategyState {
			t.Fatalf("state of another checkout was used: %+v", c)
		}
		if c.SubjectID != "a" || c.Strategy != usecase.StrategyPrice {
			t.Errorf("expected price fallback to a, got %+v", c)
		}
		if len(states.Cleared) != 0 {
			t.Errorf("state of another checkout must be kept, cleared %v", states.Cleared)
		}
		if st, err := states.Get(ctx, "sess"); err != nil || st.Token != "tok-b" {
			t.Errorf("expected tok-b state to survive, got %+v (%v)", st, err)
		}
	})

	t.Run("should use and clear checkout state saved for the same token", func(t *testing.T) {
		contents := NewMockContentRepo(published("b", "creator", "Harbour", 500, time.Hour))
		states := NewMockStateRepo()
		_ = states.Save(ctx, "sess", &model.CheckoutState{ActorID: "buyer", SubjectID: "b", Token: "tok-b"})
		r := usecase.NewCorrelationResolver(contents, states, newTestLogger())

		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: paid(500, "ref-b", nil), SessionID: "sess", Token: "tok-b"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.SubjectID != "b" || c.Strategy != usecase.StrategyState {
			t.Errorf("unexpected correlation %+v", c)
		}
		if len(states.Cleared) != 1 {
			t.Errorf("expected state to be cleared, got %v", states.Cleared)
		}
	})

	t.Run("should not accept a single title hit at another price", func(t *testing.T) {
		contents := NewMockContentRepo(published("premium", "creator", "Sunset", 5000, time.Hour))
		r := usecase.NewCorrelationResolver(contents, NewMockStateRepo(), newTestLogger())

		s := paid(500, "ref", map[string]string{"actor_id": "buyer"})
		s.Description = "Sunset"
		c, err := r.Resolve(ctx, usecase.ResolveInput{Settlement: s})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !c.IsGeneric() || c.Strategy != usecase.StrategyGeneric {
			t.Errorf("expected generic correlation, got %+v", c)
		}
	})
}
