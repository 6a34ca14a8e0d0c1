//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
	"creator-paywall/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.Transaction

	SaveFunc func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byRef: map[string]*model.Transaction{}}
}

func (r *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[t.ProviderReference]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.byRef[t.ProviderReference] = &cp
	return nil
}

func (r *MockTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MockTransactionRepo) ListByActor(ctx context.Context, tx repository.Tx, actorID string) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if t.ActorID == actorID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockTransactionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRef)
}

// All returns stored transactions, oldest first.
func (r *MockTransactionRepo) All() []*model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Transaction, 0, len(r.byRef))
	for _, t := range r.byRef {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ---- Mock PurchaseRepository ----

// MockPurchaseRepo enforces one purchase per (actor, subject) like the
// Postgres unique index does.
type MockPurchaseRepo struct {
	mu   sync.Mutex
	data map[string]*model.Purchase // key actor|subject

	SaveFunc func(ctx context.Context, tx repository.Tx, pu *model.Purchase) error
	FindErr  error
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{data: map[string]*model.Purchase{}}
}

func (r *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, pu *model.Purchase) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, pu)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pu.ActorID + "|" + pu.SubjectID
	if _, ok := r.data[key]; ok {
		return domain.ErrAlreadyPurchased
	}
	cp := *pu
	r.data[key] = &cp
	return nil
}

func (r *MockPurchaseRepo) FindByActorAndSubject(ctx context.Context, tx repository.Tx, actorID, subjectID string) (*model.Purchase, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pu, ok := r.data[actorID+"|"+subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pu
	return &cp, nil
}

func (r *MockPurchaseRepo) ListByActor(ctx context.Context, tx repository.Tx, actorID string) ([]*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Purchase
	for _, pu := range r.data {
		if pu.ActorID == actorID {
			cp := *pu
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPurchaseRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock ContentRepository ----

type MockContentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Content

	SearchCalls    int
	PriceCalls     int
	IncrementErr   error
	IncrementCalls map[string]int
}

var _ repository.ContentRepository = (*MockContentRepo)(nil)

func NewMockContentRepo(items ...*model.Content) *MockContentRepo {
	r := &MockContentRepo{data: map[string]*model.Content{}, IncrementCalls: map[string]int{}}
	for _, c := range items {
		r.data[c.ID] = c
	}
	return r
}

func (r *MockContentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MockContentRepo) SearchByTitle(ctx context.Context, tx repository.Tx, hint string, limit int) ([]*model.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SearchCalls++
	var out []*model.Content
	for _, c := range r.data {
		if c.Status == model.ContentStatusPublished && c.TitleMatches(hint) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return newestFirst(out, limit), nil
}

func (r *MockContentRepo) ListByPrice(ctx context.Context, tx repository.Tx, price int64, limit int) ([]*model.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PriceCalls++
	var out []*model.Content
	for _, c := range r.data {
		if c.Status == model.ContentStatusPublished && c.Price == price {
			cp := *c
			out = append(out, &cp)
		}
	}
	return newestFirst(out, limit), nil
}

func (r *MockContentRepo) IncrementViews(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IncrementCalls[id]++
	if r.IncrementErr != nil {
		return r.IncrementErr
	}
	if c, ok := r.data[id]; ok {
		c.Views++
		return nil
	}
	return domain.ErrNotFound
}

func newestFirst(in []*model.Content, limit int) []*model.Content {
	sort.Slice(in, func(i, j int) bool { return in[i].CreatedAt.After(in[j].CreatedAt) })
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

// ---- Mock ActorRepository ----

type MockActorRepo struct {
	mu   sync.Mutex
	data map[string]*model.Actor

	SetCreatorFunc func(ctx context.Context, tx repository.Tx, id string, creator bool) error
}

var _ repository.ActorRepository = (*MockActorRepo)(nil)

func NewMockActorRepo(actors ...*model.Actor) *MockActorRepo {
	r := &MockActorRepo{data: map[string]*model.Actor{}}
	for _, a := range actors {
		r.data[a.ID] = a
	}
	return r
}

func (r *MockActorRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MockActorRepo) SetCreator(ctx context.Context, tx repository.Tx, id string, creator bool) error {
	if r.SetCreatorFunc != nil {
		return r.SetCreatorFunc(ctx, tx, id, creator)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsCreator = creator
	return nil
}

// ---- Mock CheckoutStateRepository ----

type MockStateRepo struct {
	mu   sync.Mutex
	data map[string]model.CheckoutState

	Cleared  []string
	ClearErr error
}

var _ repository.CheckoutStateRepository = (*MockStateRepo)(nil)

func NewMockStateRepo() *MockStateRepo {
	return &MockStateRepo{data: map[string]model.CheckoutState{}}
}

func (r *MockStateRepo) Save(ctx context.Context, sessionID string, st *model.CheckoutState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[sessionID] = *st
	return nil
}

func (r *MockStateRepo) Get(ctx context.Context, sessionID string) (*model.CheckoutState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.data[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (r *MockStateRepo) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cleared = append(r.Cleared, sessionID)
	if r.ClearErr != nil {
		return r.ClearErr
	}
	delete(r.data, sessionID)
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	InitiateFunc func(ctx context.Context, req model.ChargeRequest) (model.Checkout, error)
	PollFunc     func(ctx context.Context, token string) (model.Settlement, error)

	mu        sync.Mutex
	Initiated []model.ChargeRequest
	Polls     int
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) Initiate(ctx context.Context, req model.ChargeRequest) (model.Checkout, error) {
	m.mu.Lock()
	m.Initiated = append(m.Initiated, req)
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	return model.Checkout{RedirectURL: "https://pay.example/tok-1", Token: "tok-1"}, nil
}

func (m *MockPaymentGateway) PollStatus(ctx context.Context, token string) (model.Settlement, error) {
	m.mu.Lock()
	m.Polls++
	m.mu.Unlock()
	if m.PollFunc != nil {
		return m.PollFunc(ctx, token)
	}
	return model.Settlement{State: model.SettlementPending}, nil
}

// ---- Mock IdentityProvider ----

type MockIdentity struct {
	Actor *model.Actor
}

var _ adapter.IdentityProvider = (*MockIdentity)(nil)

func (m *MockIdentity) CurrentActor(ctx context.Context) (*model.Actor, bool) {
	return m.Actor, m.Actor != nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func published(id, owner, title string, price int64, age time.Duration) *model.Content {
	return &model.Content{
		ID:            id,
		BeneficiaryID: owner,
		Title:         title,
		Price:         price,
		Status:        model.ContentStatusPublished,
		CreatedAt:     time.Now().Add(-age),
	}
}

func paid(amount int64, ref string, meta map[string]string) model.Settlement {
	return model.Settlement{State: model.SettlementPaid, Amount: amount, Reference: ref, Metadata: meta}
}
