//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
	"creator-paywall/internal/domain/ports/repository"
	"creator-paywall/internal/infra/adapters/payment"
	"creator-paywall/internal/usecase"
)

type reconcileDeps struct {
	*materializerDeps
	states *MockStateRepo
	uc     usecase.ReconcileUseCase
}

func newReconcileDeps(gw adapter.PaymentGateway, opts usecase.ReconcileOptions) *reconcileDeps {
	md := newMaterializerDeps()
	d := &reconcileDeps{materializerDeps: md, states: NewMockStateRepo()}
	resolver := usecase.NewCorrelationResolver(md.contents, d.states, newTestLogger())
	d.uc = usecase.NewReconcileUseCase(gw, &MockIdentity{}, resolver, md.m, opts, newTestLogger())
	return d
}

func pollReturning(s model.Settlement, err error) *MockPaymentGateway {
	return &MockPaymentGateway{PollFunc: func(ctx context.Context, token string) (model.Settlement, error) { return s, err }}
}

func TestReconcileUseCase_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("paid with echoed metadata ends in success and navigates to purchases", func(t *testing.T) {
		gw := payment.NewNoopPaymentGateway("")
		d := newReconcileDeps(gw, usecase.ReconcileOptions{PurchasesPath: "/my-purchases"})
		co, err := gw.Initiate(ctx, model.ChargeRequest{
			ActorID: "buyer", Amount: 500, Purpose: model.PurposeContentPurchase,
			SubjectID: "c1", SubjectTitle: "Sunset", PayerPhone: "+221700000000", ReturnURL: "https://app.test/payment/return",
		})
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		gw.SetStatus(co.Token, model.SettlementPaid)

		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: co.Token, Source: "return"})
		if res.State != usecase.StateSuccess {
			t.Fatalf("expected success, got %s (%v)", res.State, res.Err)
		}
		if res.Outcome == nil || res.Outcome.SubjectID != "c1" || res.Outcome.Transaction.Amount != 500 {
			t.Errorf("unexpected outcome %+v", res.Outcome)
		}
		if res.RedirectTo != "/my-purchases" || res.RedirectAfter != 3*time.Second {
			t.Errorf("expected delayed navigation, got %q after %s", res.RedirectTo, res.RedirectAfter)
		}
		if d.purchases.Count() != 1 {
			t.Errorf("expected one purchase, got %d", d.purchases.Count())
		}

		// Same landing again: no second purchase, still success.
		again := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: co.Token, Source: "return"})
		if again.State != usecase.StateSuccess || again.MsgKey != usecase.MsgAlreadyPurchased {
			t.Errorf("expected already-purchased success, got %s/%s", again.State, again.MsgKey)
		}
		if d.purchases.Count() != 1 || d.transactions.Count() != 1 {
			t.Errorf("expected exactly one purchase and transaction, got %d and %d", d.purchases.Count(), d.transactions.Count())
		}
	})

	t.Run("pending writes nothing", func(t *testing.T) {
		d := newReconcileDeps(pollReturning(model.Settlement{State: model.SettlementPending}, nil), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StatePending {
			t.Fatalf("expected pending, got %s", res.State)
		}
		if d.transactions.Count() != 0 {
			t.Error("pending must not write a transaction")
		}
		if res.RedirectTo != "" {
			t.Error("pending must not navigate")
		}
	})

	t.Run("failed offers a retry", func(t *testing.T) {
		d := newReconcileDeps(pollReturning(model.Settlement{State: model.SettlementFailed}, nil), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateFailed || res.Action != usecase.ActionRetryCheckout {
			t.Fatalf("unexpected result %+v", res)
		}
		if d.transactions.Count() != 0 {
			t.Error("failed must not write a transaction")
		}
	})

	t.Run("title and price pick the matching row when nothing else survived", func(t *testing.T) {
		s := paid(500, "ref-3", map[string]string{"actor_id": "buyer"})
		s.Description = "Sunset"
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		d.contents = NewMockContentRepo(
			published("cheap", "creator", "Sunset", 300, time.Hour),
			published("dear", "creator", "Sunset", 500, 2*time.Hour),
		)
		resolver := usecase.NewCorrelationResolver(d.contents, d.states, newTestLogger())
		m := usecase.NewPurchaseMaterializer(d.transactions, d.purchases, d.contents, d.actors, "XOF", newTestLogger())
		uc := usecase.NewReconcileUseCase(pollReturning(s, nil), nil, resolver, m, usecase.ReconcileOptions{}, newTestLogger())

		res := uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateSuccess {
			t.Fatalf("expected success, got %s (%v)", res.State, res.Err)
		}
		txs := d.transactions.All()
		if len(txs) != 1 || txs[0].SubjectID == nil || *txs[0].SubjectID != "dear" {
			t.Fatalf("expected transaction for dear, got %+v", txs)
		}
	})

	t.Run("a return from an earlier tab ignores the state of a later checkout", func(t *testing.T) {
		s := paid(300, "ref-a", nil)
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		d.contents = NewMockContentRepo(
			published("a", "creator", "Lagoon", 300, 2*time.Hour),
			published("b", "creator", "Harbour", 500, time.Hour),
		)
		_ = d.states.Save(ctx, "sess", &model.CheckoutState{
			Purpose: model.PurposeContentPurchase, ActorID: "buyer", SubjectID: "b", Amount: 500, Token: "tok-b",
		})
		resolver := usecase.NewCorrelationResolver(d.contents, d.states, newTestLogger())
		m := usecase.NewPurchaseMaterializer(d.transactions, d.purchases, d.contents, d.actors, "XOF", newTestLogger())
		uc := usecase.NewReconcileUseCase(pollReturning(s, nil), &MockIdentity{Actor: &model.Actor{ID: "buyer"}}, resolver, m, usecase.ReconcileOptions{}, newTestLogger())

		res := uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok-a", SessionID: "sess"})
		if res.State != usecase.StateSuccess {
			t.Fatalf("expected success, got %s (%v)", res.State, res.Err)
		}
		if _, err := d.purchases.FindByActorAndSubject(ctx, nil, "buyer", "b"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("payment for a must not unlock b, got %v", err)
		}
		if res.Outcome == nil || res.Outcome.SubjectID != "a" {
			t.Errorf("expected purchase of a, got %+v", res.Outcome)
		}
		if _, err := d.states.Get(ctx, "sess"); err != nil {
			t.Errorf("the later checkout's state must survive, got %v", err)
		}
	})

	t.Run("nothing resolvable ends in generic success without navigation", func(t *testing.T) {
		s := paid(500, "ref-4", nil)
		s.Description = "Unknown"
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		d.contents = NewMockContentRepo()
		resolver := usecase.NewCorrelationResolver(d.contents, d.states, newTestLogger())
		m := usecase.NewPurchaseMaterializer(d.transactions, d.purchases, d.contents, d.actors, "XOF", newTestLogger())
		uc := usecase.NewReconcileUseCase(pollReturning(s, nil), &MockIdentity{Actor: &model.Actor{ID: "buyer"}}, resolver, m, usecase.ReconcileOptions{}, newTestLogger())

		res := uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateSuccess || res.MsgKey != usecase.MsgSuccessGeneric {
			t.Fatalf("expected generic success, got %s/%s (%v)", res.State, res.MsgKey, res.Err)
		}
		if res.RedirectTo != "" || res.RedirectAfter != 0 {
			t.Error("generic success must not navigate")
		}
		if d.transactions.Count() != 1 || d.purchases.Count() != 0 {
			t.Errorf("expected one generic transaction, got %d tx / %d purchases", d.transactions.Count(), d.purchases.Count())
		}
	})

	t.Run("missing token fails without calling the gateway", func(t *testing.T) {
		gw := &MockPaymentGateway{}
		d := newReconcileDeps(gw, usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{})
		if res.State != usecase.StateError || !errors.Is(res.Err, domain.ErrMissingToken) {
			t.Fatalf("expected missing-token error, got %+v", res)
		}
		if gw.Polls != 0 {
			t.Errorf("gateway must not be called, got %d polls", gw.Polls)
		}
	})

	t.Run("gateway failure ends in error", func(t *testing.T) {
		d := newReconcileDeps(pollReturning(model.Settlement{}, domain.ErrGatewayUnavailable), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateError || !errors.Is(res.Err, domain.ErrGatewayUnavailable) {
			t.Fatalf("unexpected result %+v", res)
		}
		if res.Action != usecase.ActionRetryCheckout {
			t.Errorf("unexpected action %q", res.Action)
		}
	})

	t.Run("slow gateway is cut off by the poll timeout", func(t *testing.T) {
		gw := &MockPaymentGateway{PollFunc: func(ctx context.Context, token string) (model.Settlement, error) {
			<-ctx.Done()
			return model.Settlement{}, ctx.Err()
		}}
		d := newReconcileDeps(gw, usecase.ReconcileOptions{PollTimeout: 20 * time.Millisecond})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateError || !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Fatalf("expected timeout error, got %+v", res)
		}
	})

	t.Run("unresolved actor ends in error and writes nothing", func(t *testing.T) {
		d := newReconcileDeps(pollReturning(paid(500, "ref", map[string]string{"subject_id": "c1"}), nil), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateError || !errors.Is(res.Err, domain.ErrUnresolvedActor) {
			t.Fatalf("unexpected result %+v", res)
		}
		if d.transactions.Count() != 0 {
			t.Error("nothing should be written without an actor")
		}
	})

	t.Run("partial activation is distinct from success and error", func(t *testing.T) {
		s := paid(1000, "ref-5", map[string]string{"purpose": "creator_activation", "actor_id": "buyer"})
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		d.actors.SetCreatorFunc = func(ctx context.Context, tx repository.Tx, id string, creator bool) error {
			return errors.New("store unavailable")
		}

		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateSuccess {
			t.Fatalf("expected success state, got %s", res.State)
		}
		if res.Outcome.Kind != model.OutcomePartialActivation || res.MsgKey != usecase.MsgPartial {
			t.Errorf("expected partial activation, got %s/%s", res.Outcome.Kind, res.MsgKey)
		}
		if res.Action != usecase.ActionContactSupport || res.RedirectTo != "" {
			t.Errorf("partial activation must not navigate, got %q / %q", res.Action, res.RedirectTo)
		}
	})

	t.Run("activation success uses its own message", func(t *testing.T) {
		s := paid(1000, "ref-6", map[string]string{"purpose": "creator_activation", "actor_id": "buyer"})
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok"})
		if res.State != usecase.StateSuccess || res.MsgKey != usecase.MsgActivated {
			t.Fatalf("unexpected result %s/%s (%v)", res.State, res.MsgKey, res.Err)
		}
	})

	t.Run("missing provider reference falls back to the token", func(t *testing.T) {
		s := paid(500, "", map[string]string{"actor_id": "buyer", "subject_id": "c1"})
		d := newReconcileDeps(pollReturning(s, nil), usecase.ReconcileOptions{})
		res := d.uc.Reconcile(ctx, usecase.ReconcileInput{Token: "tok-77"})
		if res.State != usecase.StateSuccess {
			t.Fatalf("expected success, got %s (%v)", res.State, res.Err)
		}
		if res.Outcome.Transaction.ProviderReference != "tok-77" {
			t.Errorf("unexpected reference %q", res.Outcome.Transaction.ProviderReference)
		}
	})
}

func TestReconcileResult_Keys(t *testing.T) {
	r := usecase.ReconcileResult{MsgKey: usecase.MsgPending}
	if r.LabelKey() != "reconcile.pending.label" || r.DescriptionKey() != "reconcile.pending.description" {
		t.Errorf("unexpected keys %q %q", r.LabelKey(), r.DescriptionKey())
	}
}
