// internal/service/purchase/application/service_test.go
package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/purchase/domain"
)

type fakeLedger struct {
	mu         sync.Mutex
	users      []ledgerdomain.User
	promos     map[string]*ledgerdomain.PromoCode
	nextID     uint
	payments   []fakePayment
	payErr     error
	upsertErr  error
}

type fakePayment struct {
	buyerID   int64
	quantity  int
	amount    float64
	promoCode string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{promos: make(map[string]*ledgerdomain.PromoCode), nextID: 100}
}

func (f *fakeLedger) UpsertUser(_ context.Context, user ledgerdomain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, user)
	return f.upsertErr
}

func (f *fakeLedger) FindPromoCode(_ context.Context, code string) (*ledgerdomain.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[code]
	if !ok {
		return nil, ledgerdomain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) CreatePayment(_ context.Context, buyerID int64, quantity int, amount float64, promoCode string) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payErr != nil {
		return 0, f.payErr
	}
	f.nextID++
	f.payments = append(f.payments, fakePayment{buyerID: buyerID, quantity: quantity, amount: amount, promoCode: promoCode})
	return f.nextID, nil
}

func (f *fakeLedger) createdPayments() []fakePayment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePayment(nil), f.payments...)
}

type fakeSessions struct {
	mu     sync.Mutex
	states map[string]domain.SessionState
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: make(map[string]domain.SessionState)}
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (domain.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[sessionID]
	if !ok {
		return domain.Idle{}, nil
	}
	return st, nil
}

func (f *fakeSessions) Set(_ context.Context, sessionID string, state domain.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[sessionID] = state
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, sessionID)
	return nil
}

func (f *fakeSessions) state(sessionID string) domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[sessionID]
	if !ok {
		return domain.Idle{}
	}
	return st
}

type fakePrompter struct {
	mu      sync.Mutex
	prompts []domain.Prompt
}

func (f *fakePrompter) Prompt(_ context.Context, _ int64, prompt domain.Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return nil
}

func (f *fakePrompter) last(t *testing.T) domain.Prompt {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.prompts)
	return f.prompts[len(f.prompts)-1]
}

type fakeModeration struct {
	mu          sync.Mutex
	submissions []domain.Submission
	err         error
}

func (f *fakeModeration) NotifySubmission(_ context.Context, sub domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submissions = append(f.submissions, sub)
	return nil
}

func (f *fakeModeration) received() []domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Submission(nil), f.submissions...)
}

type harness struct {
	svc        *Service
	ledger     *fakeLedger
	sessions   *fakeSessions
	prompter   *fakePrompter
	moderation *fakeModeration
}

func newHarness(t *testing.T, debounce time.Duration) *harness {
	t.Helper()
	h := &harness{
		ledger:     newFakeLedger(),
		sessions:   newFakeSessions(),
		prompter:   &fakePrompter{},
		moderation: &fakeModeration{},
	}
	pricing := Pricing{Discount: 750, Standard: 1100}
	tracer := noop.NewTracerProvider().Tracer("test")
	h.svc = NewService(h.ledger, h.sessions, h.prompter, h.moderation, pricing, debounce, tracer)
	t.Cleanup(h.svc.Close)
	return h
}

var testBuyer = domain.Buyer{TelegramID: 42, Username: "ada", Name: "Ada"}

const testSession = "42"

func (h *harness) handle(t *testing.T, ev domain.Event) {
	t.Helper()
	require.NoError(t, h.svc.HandleEvent(context.Background(), testBuyer, ev))
}

func TestStandardTierFlow(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.handle(t, domain.StartPurchase{})
	assert.Equal(t, domain.ChoosingQuantity{}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptChooseQuantity, h.prompter.last(t).Kind)

	h.handle(t, domain.SelectQuantity{Quantity: 2})
	assert.Equal(t, domain.ChoosingPriceTier{Quantity: 2}, h.sessions.state(testSession))

	h.handle(t, domain.SelectTier{Tier: domain.TierStandard})
	assert.Equal(t, domain.WaitingPaymentConfirm{Quantity: 2, Total: 2200}, h.sessions.state(testSession))
	last := h.prompter.last(t)
	assert.Equal(t, domain.PromptPaymentRequisites, last.Kind)
	assert.Equal(t, 2200.0, last.Total)

	h.handle(t, domain.ConfirmPaid{})
	assert.Equal(t, domain.WaitingPaymentProof{Quantity: 2, Total: 2200}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptAskProof, h.prompter.last(t).Kind)

	// 每次交互都刷新了用户表
	assert.Len(t, h.ledger.users, 4)
	assert.Equal(t, testBuyer.TelegramID, h.ledger.users[0].TelegramID)
}

func TestDiscountTierAsksForPromoCode(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.handle(t, domain.StartPurchase{})
	h.handle(t, domain.SelectQuantity{Quantity: 3})
	h.handle(t, domain.SelectTier{Tier: domain.TierDiscount})

	assert.Equal(t, domain.WaitingPromoCode{Quantity: 3, TierAmount: 2250}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptAskPromoCode, h.prompter.last(t).Kind)
}

func TestPromoCodeReplacesTierPrice(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.ledger.promos["FOO42A"] = &ledgerdomain.PromoCode{ID: 7, Code: "FOO42A", Value: 500, UsageLimit: 5}

	h.handle(t, domain.StartPurchase{})
	h.handle(t, domain.SelectQuantity{Quantity: 2})
	h.handle(t, domain.SelectTier{Tier: domain.TierDiscount})
	h.handle(t, domain.EnterPromoCode{Code: "FOO42A"})

	assert.Equal(t, domain.WaitingPaymentConfirm{Quantity: 2, Total: 1000, PromoCode: "FOO42A"}, h.sessions.state(testSession))
	last := h.prompter.last(t)
	assert.Equal(t, domain.PromptPaymentRequisites, last.Kind)
	assert.Equal(t, 1000.0, last.Total)
}

func TestUnknownPromoCodeKeepsState(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.handle(t, domain.StartPurchase{})
	h.handle(t, domain.SelectQuantity{Quantity: 1})
	h.handle(t, domain.SelectTier{Tier: domain.TierDiscount})
	h.handle(t, domain.EnterPromoCode{Code: "NOPE"})

	assert.Equal(t, domain.WaitingPromoCode{Quantity: 1, TierAmount: 750}, h.sessions.state(testSession))
	last := h.prompter.last(t)
	assert.Equal(t, domain.PromptError, last.Kind)
	assert.Equal(t, domain.ReasonPromoInvalid, last.Reason)
}

func TestExhaustedPromoCodeKeepsState(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.ledger.promos["GONE11"] = &ledgerdomain.PromoCode{Code: "GONE11", Value: 500, UsageLimit: 2, UsedCount: 2}

	h.handle(t, domain.StartPurchase{})
	h.handle(t, domain.SelectQuantity{Quantity: 1})
	h.handle(t, domain.SelectTier{Tier: domain.TierDiscount})
	h.handle(t, domain.EnterPromoCode{Code: "GONE11"})

	assert.Equal(t, domain.WaitingPromoCode{Quantity: 1, TierAmount: 750}, h.sessions.state(testSession))
	assert.Equal(t, domain.ReasonPromoInvalid, h.prompter.last(t).Reason)
}

func TestOutOfOrderInputIsRejectedInPlace(t *testing.T) {
	h := newHarness(t, time.Hour)

	// Idle 状态下直接确认付款
	h.handle(t, domain.ConfirmPaid{})
	assert.Equal(t, domain.Idle{}, h.sessions.state(testSession))
	last := h.prompter.last(t)
	assert.Equal(t, domain.PromptError, last.Kind)
	assert.Equal(t, domain.ReasonInvalidInput, last.Reason)

	// 非正数量
	h.handle(t, domain.StartPurchase{})
	h.handle(t, domain.SelectQuantity{Quantity: 0})
	assert.Equal(t, domain.ChoosingQuantity{}, h.sessions.state(testSession))
	assert.Equal(t, domain.ReasonInvalidInput, h.prompter.last(t).Reason)
}

func TestSingleImageProofIsImmediatelyComplete(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 2, Total: 2200}

	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "img-1"}})

	payments := h.ledger.createdPayments()
	require.Len(t, payments, 1)
	assert.Equal(t, fakePayment{buyerID: 42, quantity: 2, amount: 2200}, payments[0])

	subs := h.moderation.received()
	require.Len(t, subs, 1)
	assert.Equal(t, uint(101), subs[0].PaymentID)
	assert.Equal(t, []domain.ProofImage{{FileID: "img-1"}}, subs[0].Images)
	assert.Equal(t, 2, subs[0].Meta.Quantity)

	assert.Equal(t, domain.OnReview{PaymentID: 101}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptOnReview, h.prompter.last(t).Kind)
}

func TestAlbumProofAggregatesBeforeModeration(t *testing.T) {
	h := newHarness(t, 40*time.Millisecond)
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 1, Total: 1100}

	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "a"}, GroupID: "album-1"})
	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "b"}, GroupID: "album-1"})

	// 支付单在首图时即落库，会话已携带 PaymentID
	st, ok := h.sessions.state(testSession).(domain.WaitingPaymentProof)
	require.True(t, ok)
	assert.Equal(t, uint(101), st.PaymentID)
	require.Len(t, h.ledger.createdPayments(), 1)
	assert.Empty(t, h.moderation.received())

	// 静默窗口过后批次完整
	require.Eventually(t, func() bool {
		return len(h.moderation.received()) == 1
	}, time.Second, 10*time.Millisecond)

	subs := h.moderation.received()
	assert.Equal(t, []domain.ProofImage{{FileID: "a"}, {FileID: "b"}}, subs[0].Images)
	assert.Equal(t, uint(101), subs[0].PaymentID)
	// 没有第二条支付记录
	assert.Len(t, h.ledger.createdPayments(), 1)
	assert.Equal(t, domain.OnReview{PaymentID: 101}, h.sessions.state(testSession))
}

func TestPromoRaceAtPaymentCreationAbortsSubmission(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.ledger.payErr = ledgerdomain.ErrPromoInvalid
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 1, Total: 500, PromoCode: "RACE00"}

	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "x"}})

	assert.Empty(t, h.ledger.createdPayments())
	assert.Empty(t, h.moderation.received())
	// 会话停在原状态，PaymentID 仍为零
	assert.Equal(t, domain.WaitingPaymentProof{Quantity: 1, Total: 500, PromoCode: "RACE00"}, h.sessions.state(testSession))
	assert.Equal(t, domain.ReasonPromoInvalid, h.prompter.last(t).Reason)
}

func TestModerationFailureKeepsProofState(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.moderation.err = assert.AnError
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 1, Total: 1100}

	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "x"}})

	// 支付单已创建，但会话没有进入 on_review，可以重新提交
	require.Len(t, h.ledger.createdPayments(), 1)
	st, ok := h.sessions.state(testSession).(domain.WaitingPaymentProof)
	require.True(t, ok)
	assert.Equal(t, uint(101), st.PaymentID)
	assert.Equal(t, domain.ReasonStoreUnavailable, h.prompter.last(t).Reason)
}

func TestBackRouting(t *testing.T) {
	h := newHarness(t, time.Hour)

	// 确认页带促销码：返回重新进入促销码输入
	h.sessions.states[testSession] = domain.WaitingPaymentConfirm{Quantity: 2, Total: 1000, PromoCode: "FOO42A"}
	h.handle(t, domain.Back{})
	assert.Equal(t, domain.WaitingPromoCode{Quantity: 2, TierAmount: 1500}, h.sessions.state(testSession))

	// 确认页不带促销码：返回档位选择
	h.sessions.states[testSession] = domain.WaitingPaymentConfirm{Quantity: 2, Total: 2200}
	h.handle(t, domain.Back{})
	assert.Equal(t, domain.ChoosingPriceTier{Quantity: 2}, h.sessions.state(testSession))

	// 支付单已落库后的凭证页：不可返回
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 1, Total: 1100, PaymentID: 9}
	h.handle(t, domain.Back{})
	assert.Equal(t, domain.WaitingPaymentProof{Quantity: 1, Total: 1100, PaymentID: 9}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptAskProof, h.prompter.last(t).Kind)

	// 数量选择页返回即退出流程
	h.sessions.states[testSession] = domain.ChoosingQuantity{}
	h.handle(t, domain.Back{})
	assert.Equal(t, domain.Idle{}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptMainMenu, h.prompter.last(t).Kind)
}

func TestCancelEvictsPendingBursts(t *testing.T) {
	h := newHarness(t, 40*time.Millisecond)
	h.sessions.states[testSession] = domain.WaitingPaymentProof{Quantity: 1, Total: 1100}

	h.handle(t, domain.SubmitProof{Image: domain.ProofImage{FileID: "a"}, GroupID: "album-2"})
	h.handle(t, domain.CancelPurchase{})

	assert.Equal(t, domain.Idle{}, h.sessions.state(testSession))
	assert.Equal(t, domain.PromptMainMenu, h.prompter.last(t).Kind)

	// 被取消的批次不会迟到触发
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, h.moderation.received())
}
