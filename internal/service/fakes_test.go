package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/internal/repository"
)

type memoryPlanRepository struct {
	plans map[string]models.MembershipPlan
}

func newMemoryPlanRepository(plans ...models.MembershipPlan) *memoryPlanRepository {
	repo := &memoryPlanRepository{plans: make(map[string]models.MembershipPlan)}
	for _, plan := range plans {
		repo.plans[plan.Code] = plan
	}
	return repo
}

func (m *memoryPlanRepository) GetByCode(code string) (*models.MembershipPlan, error) {
	if plan, ok := m.plans[code]; ok {
		return &plan, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryPlanRepository) GetAllActive() ([]models.MembershipPlan, error) {
	var out []models.MembershipPlan
	for _, plan := range m.plans {
		if plan.Active {
			out = append(out, plan)
		}
	}
	return out, nil
}

func (m *memoryPlanRepository) Create(plan *models.MembershipPlan) error {
	m.plans[plan.Code] = *plan
	return nil
}

func (m *memoryPlanRepository) Count() (int64, error) {
	return int64(len(m.plans)), nil
}

type memoryPaymentRepository struct {
	mu       sync.Mutex
	nextID   uint
	payments map[uint]models.Payment
}

func newMemoryPaymentRepository() *memoryPaymentRepository {
	return &memoryPaymentRepository{nextID: 1, payments: make(map[uint]models.Payment)}
}

func (m *memoryPaymentRepository) Create(payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment.ID = m.nextID
	m.nextID++
	m.payments[payment.ID] = *payment
	return nil
}

func (m *memoryPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment, ok := m.payments[id]; ok {
		return &payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryPaymentRepository) GetByMerchantUID(merchantUID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.MerchantUID == merchantUID {
			return &payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryPaymentRepository) UpdateStatus(id uint, status string, txID string, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	payment.Status = status
	if txID != "" {
		payment.TxID = txID
	}
	payment.PaidAt = paidAt
	m.payments[id] = payment
	return nil
}

type planChangeCall struct {
	userID      uint
	planCode    string
	effectiveAt time.Time
}

type memorySubscriptionRepository struct {
	mu        sync.Mutex
	subs      map[uint]models.Subscription
	scheduled []planChangeCall
	applied   []planChangeCall
	failWrite bool
}

func newMemorySubscriptionRepository(subs ...models.Subscription) *memorySubscriptionRepository {
	repo := &memorySubscriptionRepository{subs: make(map[uint]models.Subscription)}
	for _, sub := range subs {
		repo.subs[sub.UserID] = sub
	}
	return repo
}

func (m *memorySubscriptionRepository) Create(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = *sub
	return nil
}

func (m *memorySubscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[userID]; ok {
		return &sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memorySubscriptionRepository) Update(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = *sub
	return nil
}

func (m *memorySubscriptionRepository) SchedulePlanChange(userID uint, planCode string, effectiveAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return gorm.ErrInvalidTransaction
	}
	sub := m.subs[userID]
	sub.PendingPlanCode = &planCode
	sub.PendingEffectiveAt = &effectiveAt
	m.subs[userID] = sub
	m.scheduled = append(m.scheduled, planChangeCall{userID: userID, planCode: planCode, effectiveAt: effectiveAt})
	return nil
}

func (m *memorySubscriptionRepository) GetDuePlanChanges(now time.Time) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Subscription
	for _, sub := range m.subs {
		if sub.PendingPlanCode != nil && sub.PendingEffectiveAt != nil && !sub.PendingEffectiveAt.After(now) {
			due = append(due, sub)
		}
	}
	return due, nil
}

func (m *memorySubscriptionRepository) ApplyPlan(userID uint, planCode string, nextBillingAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.subs[userID]
	sub.PlanCode = planCode
	sub.NextBillingAt = nextBillingAt
	sub.PendingPlanCode = nil
	sub.PendingEffectiveAt = nil
	m.subs[userID] = sub
	m.applied = append(m.applied, planChangeCall{userID: userID, planCode: planCode, effectiveAt: nextBillingAt})
	return nil
}

var (
	_ repository.PlanRepository         = (*memoryPlanRepository)(nil)
	_ repository.PaymentRepository      = (*memoryPaymentRepository)(nil)
	_ repository.SubscriptionRepository = (*memorySubscriptionRepository)(nil)
)

func int64Ptr(v int64) *int64 {
	return &v
}

// fakeSessionStore scripts session creation and status polling for the
// checkout orchestrator tests.
type fakeSessionStore struct {
	mu sync.Mutex

	session   *payments.CheckoutSession
	createErr error
	creates   []CreateSessionInput

	statuses   []payments.Status
	statusErrs []error
	polls      []time.Time
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, in CreateSessionInput) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.session != nil {
		return f.session, nil
	}
	amount := int64(14900)
	if in.Amount != nil {
		amount = *in.Amount
	}
	return &payments.CheckoutSession{
		ProviderSessionID: "ord_test",
		Amount:            amount,
		PaymentID:         42,
		PG:                string(in.Gateway),
	}, nil
}

func (f *fakeSessionStore) GetStatus(ctx context.Context, paymentID uint) (payments.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.polls)
	f.polls = append(f.polls, time.Now())
	if idx < len(f.statusErrs) && f.statusErrs[idx] != nil {
		return payments.StatusPending, f.statusErrs[idx]
	}
	if idx < len(f.statuses) {
		return f.statuses[idx], nil
	}
	return payments.StatusPending, nil
}

func (f *fakeSessionStore) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.polls)
}

var _ SessionStore = (*fakeSessionStore)(nil)

// fakeBridge scripts the PG SDK: it records the invocation order and fires
// the callback asynchronously, once.
type fakeBridge struct {
	mu sync.Mutex

	loadErr error
	initErr error

	loads    int
	inits    []string
	requests []payments.PaymentRequest

	response payments.PaymentResponse

	events []string
}

func (f *fakeBridge) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.events = append(f.events, "load")
	return f.loadErr
}

func (f *fakeBridge) Initialize(merchantCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, merchantCode)
	f.events = append(f.events, "initialize")
	return f.initErr
}

func (f *fakeBridge) RequestPayment(ctx context.Context, req payments.PaymentRequest, cb payments.Callback) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.events = append(f.events, "request")
	resp := f.response
	f.mu.Unlock()

	resp.MerchantUID = req.MerchantUID
	go cb(resp)
	return nil
}

func (f *fakeBridge) lastRequest() payments.PaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return payments.PaymentRequest{}
	}
	return f.requests[len(f.requests)-1]
}

var _ payments.Bridge = (*fakeBridge)(nil)
