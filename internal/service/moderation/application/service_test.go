// internal/service/moderation/application/service_test.go
package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/moderation/domain"
)

type fakeLedger struct {
	mu          sync.Mutex
	payments    map[uint]*ledgerdomain.Payment
	tokens      []string
	approveErr  error
	rejectErr   error
	codes       map[string]bool
	createErrs  []error // 逐次弹出
	createCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{payments: make(map[uint]*ledgerdomain.Payment), codes: make(map[string]bool)}
}

func (f *fakeLedger) FindPayment(_ context.Context, id uint) (*ledgerdomain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, ledgerdomain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) Approve(_ context.Context, paymentID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	if _, ok := f.payments[paymentID]; !ok {
		return nil, ledgerdomain.ErrNotFound
	}
	return f.tokens, nil
}

func (f *fakeLedger) Reject(_ context.Context, paymentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectErr != nil {
		return f.rejectErr
	}
	if _, ok := f.payments[paymentID]; !ok {
		return ledgerdomain.ErrNotFound
	}
	return nil
}

func (f *fakeLedger) CreatePromoCode(_ context.Context, promo ledgerdomain.PromoCode) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.codes[promo.Code] = true
	return uint(len(f.codes)), nil
}

type fakeArtifacts struct {
	mu       sync.Mutex
	requests []domain.ArtifactRequest
	failOn   map[string]bool
}

func (f *fakeArtifacts) RequestArtifact(_ context.Context, req domain.ArtifactRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[req.Token] {
		return assert.AnError
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeArtifacts) received() []domain.ArtifactRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ArtifactRequest(nil), f.requests...)
}

type fakeOutcomes struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (f *fakeOutcomes) NotifyOutcome(_ context.Context, outcome domain.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func newTestService(ledger *fakeLedger, artifacts *fakeArtifacts, outcomes *fakeOutcomes) *Service {
	return NewService(ledger, artifacts, outcomes, noop.NewTracerProvider().Tracer("test"))
}

func TestApproveFansOutArtifactsAndNotifies(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payments[5] = &ledgerdomain.Payment{ID: 5, BuyerTelegramID: 42, Quantity: 3}
	ledger.tokens = []string{"t1", "t2", "t3"}
	artifacts := &fakeArtifacts{}
	outcomes := &fakeOutcomes{}
	svc := newTestService(ledger, artifacts, outcomes)

	tokens, err := svc.Approve(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, tokens)

	reqs := artifacts.received()
	require.Len(t, reqs, 3)
	seen := make(map[string]domain.ArtifactRequest)
	for _, r := range reqs {
		seen[r.Token] = r
		assert.Equal(t, int64(42), r.OwnerTelegramID)
		assert.Equal(t, 3, r.Total)
	}
	assert.Len(t, seen, 3)

	require.Len(t, outcomes.outcomes, 1)
	out := outcomes.outcomes[0]
	assert.True(t, out.Approved)
	assert.Equal(t, int64(42), out.BuyerTelegramID)
	assert.Equal(t, []string{"t1", "t2", "t3"}, out.Tokens)
}

func TestApproveIsolatesArtifactFailures(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payments[5] = &ledgerdomain.Payment{ID: 5, BuyerTelegramID: 42, Quantity: 3}
	ledger.tokens = []string{"t1", "t2", "t3"}
	artifacts := &fakeArtifacts{failOn: map[string]bool{"t2": true}}
	outcomes := &fakeOutcomes{}
	svc := newTestService(ledger, artifacts, outcomes)

	tokens, err := svc.Approve(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, tokens, 3)

	// t2 失败不影响 t1/t3 的投递，也不影响买家通知
	got := artifacts.received()
	require.Len(t, got, 2)
	for _, r := range got {
		assert.NotEqual(t, "t2", r.Token)
	}
	assert.Len(t, outcomes.outcomes, 1)
}

func TestApprovePropagatesLedgerErrors(t *testing.T) {
	ledger := newFakeLedger()
	ledger.approveErr = ledgerdomain.ErrAlreadyProcessed
	svc := newTestService(ledger, &fakeArtifacts{}, &fakeOutcomes{})

	_, err := svc.Approve(context.Background(), 9)
	require.ErrorIs(t, err, ledgerdomain.ErrAlreadyProcessed)
}

func TestRejectNotifiesBuyer(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payments[7] = &ledgerdomain.Payment{ID: 7, BuyerTelegramID: 99}
	artifacts := &fakeArtifacts{}
	outcomes := &fakeOutcomes{}
	svc := newTestService(ledger, artifacts, outcomes)

	require.NoError(t, svc.Reject(context.Background(), 7))
	assert.Empty(t, artifacts.received())
	require.Len(t, outcomes.outcomes, 1)
	assert.False(t, outcomes.outcomes[0].Approved)
	assert.Equal(t, int64(99), outcomes.outcomes[0].BuyerTelegramID)
}

func TestGeneratePromoCodeRetriesOnCollision(t *testing.T) {
	ledger := newFakeLedger()
	ledger.createErrs = []error{ledgerdomain.ErrPromoExists, ledgerdomain.ErrPromoExists}
	svc := newTestService(ledger, &fakeArtifacts{}, &fakeOutcomes{})

	code, err := svc.GeneratePromoCode(context.Background(), 1, 500, 10)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, 3, ledger.createCalls)
}

func TestGeneratePromoCodeGivesUpAfterRetries(t *testing.T) {
	ledger := newFakeLedger()
	for i := 0; i < promoCodeRetries; i++ {
		ledger.createErrs = append(ledger.createErrs, ledgerdomain.ErrPromoExists)
	}
	svc := newTestService(ledger, &fakeArtifacts{}, &fakeOutcomes{})

	_, err := svc.GeneratePromoCode(context.Background(), 1, 500, 10)
	require.ErrorIs(t, err, ledgerdomain.ErrPromoExists)
	assert.Equal(t, promoCodeRetries, ledger.createCalls)
}

func TestGeneratePromoCodeValidatesInput(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeArtifacts{}, &fakeOutcomes{})

	_, err := svc.GeneratePromoCode(context.Background(), 1, 0, 10)
	require.Error(t, err)
	_, err = svc.GeneratePromoCode(context.Background(), 1, 500, 0)
	require.Error(t, err)
}
