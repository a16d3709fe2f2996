// internal/service/purchase/application/service.go
package application

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lekker/internal/pkg/logger"
	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/purchase/domain"
	"lekker/internal/service/purchase/mediagroup"
	"lekker/internal/service/purchase/port"
)

// Pricing 是两个固定档位的单张票价。
type Pricing struct {
	Discount float64
	Standard float64
}

// TierPrice 返回档位的单张票价。
func (p Pricing) TierPrice(tier domain.PriceTier) (float64, bool) {
	switch tier {
	case domain.TierDiscount:
		return p.Discount, true
	case domain.TierStandard:
		return p.Standard, true
	}
	return 0, false
}

// Service 是购买状态机的编排者：买家事件进来，
// 会话状态迁移出去，途中调用账本和聚合缓冲。
// 每个会话的事件由消费侧按分区串行投递，Service 本身
// 不需要为单个会话加锁。
type Service struct {
	ledger     port.Ledger
	sessions   port.SessionStore
	prompter   port.Prompter
	moderation port.ModerationNotifier
	buffer     *mediagroup.Buffer
	pricing    Pricing
	tracer     trace.Tracer
}

// NewService 创建状态机服务并挂接聚合缓冲的 flush 回调。
func NewService(
	ledger port.Ledger,
	sessions port.SessionStore,
	prompter port.Prompter,
	moderation port.ModerationNotifier,
	pricing Pricing,
	debounce time.Duration,
	tracer trace.Tracer,
) *Service {
	s := &Service{
		ledger:     ledger,
		sessions:   sessions,
		prompter:   prompter,
		moderation: moderation,
		pricing:    pricing,
		tracer:     tracer,
	}
	s.buffer = mediagroup.New(debounce, s.onBurstComplete)
	return s
}

// Close 停掉聚合缓冲里所有未触发的计时器。
func (s *Service) Close() {
	s.buffer.Close()
}

// HandleEvent 处理一条买家输入事件并完成一次状态迁移。
// 所有可恢复的失败（非法输入、促销码无效、存储不可用）都
// 通过 Prompt 告知买家并保持会话在迁移前的状态；返回非 nil
// 错误仅代表基础设施层面的异常。
func (s *Service) HandleEvent(ctx context.Context, buyer domain.Buyer, event domain.Event) error {
	ctx, span := s.tracer.Start(ctx, "purchase.HandleEvent")
	defer span.End()

	// 每次交互都刷新用户表；失败不阻断购买流程
	user := ledgerdomain.User{TelegramID: buyer.TelegramID, Username: buyer.Username, Name: buyer.Name}
	if err := s.ledger.UpsertUser(ctx, user); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("buyer", buyer.TelegramID).Msg("user upsert failed")
	}

	sessionID := strconv.FormatInt(buyer.TelegramID, 10)
	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session load failed")
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonStoreUnavailable})
		return errors.Wrap(err, "load session")
	}

	span.SetAttributes(
		attribute.Int64("buyer.id", buyer.TelegramID),
		attribute.String("session.state", domain.StateName(state)),
	)

	switch ev := event.(type) {
	case domain.StartPurchase:
		return s.moveTo(ctx, buyer, sessionID, domain.ChoosingQuantity{}, domain.Prompt{Kind: domain.PromptChooseQuantity})

	case domain.SelectQuantity:
		return s.selectQuantity(ctx, buyer, sessionID, state, ev)

	case domain.SelectTier:
		return s.selectTier(ctx, buyer, sessionID, state, ev)

	case domain.EnterPromoCode:
		return s.enterPromoCode(ctx, buyer, sessionID, state, ev)

	case domain.ConfirmPaid:
		confirm, ok := state.(domain.WaitingPaymentConfirm)
		if !ok {
			return s.rejectInput(ctx, buyer, "paid confirm outside of payment confirmation")
		}
		next := domain.WaitingPaymentProof{
			Quantity:  confirm.Quantity,
			Total:     confirm.Total,
			PromoCode: confirm.PromoCode,
		}
		return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptAskProof})

	case domain.SubmitProof:
		return s.submitProof(ctx, buyer, sessionID, state, ev)

	case domain.Back:
		return s.goBack(ctx, buyer, sessionID, state)

	case domain.CancelPurchase:
		// 放弃购买：清掉会话以及名下所有未触发的凭证批次
		s.buffer.CancelSession(sessionID)
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			span.RecordError(err)
			return errors.Wrap(err, "delete session")
		}
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptMainMenu})
		return nil
	}

	return s.rejectInput(ctx, buyer, "unknown event")
}

func (s *Service) selectQuantity(ctx context.Context, buyer domain.Buyer, sessionID string, state domain.SessionState, ev domain.SelectQuantity) error {
	switch state.(type) {
	case domain.Idle, domain.ChoosingQuantity:
	default:
		return s.rejectInput(ctx, buyer, "quantity selection outside of quantity choice")
	}
	if ev.Quantity <= 0 {
		return s.rejectInput(ctx, buyer, "non-positive quantity")
	}
	next := domain.ChoosingPriceTier{Quantity: ev.Quantity}
	return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptChoosePriceTier})
}

func (s *Service) selectTier(ctx context.Context, buyer domain.Buyer, sessionID string, state domain.SessionState, ev domain.SelectTier) error {
	choosing, ok := state.(domain.ChoosingPriceTier)
	if !ok {
		return s.rejectInput(ctx, buyer, "tier selection outside of tier choice")
	}
	price, ok := s.pricing.TierPrice(ev.Tier)
	if !ok {
		return s.rejectInput(ctx, buyer, "unknown price tier")
	}
	total := price * float64(choosing.Quantity)

	if ev.Tier == domain.TierDiscount {
		// 折扣档先给机会输入促销码；档位总价随会话带过去
		next := domain.WaitingPromoCode{Quantity: choosing.Quantity, TierAmount: total}
		return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptAskPromoCode})
	}
	next := domain.WaitingPaymentConfirm{Quantity: choosing.Quantity, Total: total}
	return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptPaymentRequisites, Total: total})
}

func (s *Service) enterPromoCode(ctx context.Context, buyer domain.Buyer, sessionID string, state domain.SessionState, ev domain.EnterPromoCode) error {
	waiting, ok := state.(domain.WaitingPromoCode)
	if !ok {
		return s.rejectInput(ctx, buyer, "promo code outside of promo entry")
	}

	promo, err := s.ledger.FindPromoCode(ctx, ev.Code)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrNotFound) {
			promoRejections.Inc()
			s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonPromoInvalid})
			return nil
		}
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonStoreUnavailable})
		return errors.Wrap(err, "find promo code")
	}
	if promo.Exhausted() {
		// 预检查只为了提示得早；真正的额度保证在支付单创建事务里
		promoRejections.Inc()
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonPromoInvalid})
		return nil
	}

	total := promo.Value * float64(waiting.Quantity)
	next := domain.WaitingPaymentConfirm{Quantity: waiting.Quantity, Total: total, PromoCode: promo.Code}
	return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptPaymentRequisites, Total: total})
}

// submitProof 处理一张支付凭证。
// 首图必须在任何异步等待之前同步创建支付单——即便同一相册的
// 后续图片已经在路上，也只会有这一条支付记录。
func (s *Service) submitProof(ctx context.Context, buyer domain.Buyer, sessionID string, state domain.SessionState, ev domain.SubmitProof) error {
	proof, ok := state.(domain.WaitingPaymentProof)
	if !ok {
		return s.rejectInput(ctx, buyer, "proof image outside of proof submission")
	}

	if proof.PaymentID == 0 {
		paymentID, err := s.ledger.CreatePayment(ctx, buyer.TelegramID, proof.Quantity, proof.Total, proof.PromoCode)
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrPromoInvalid) {
				// 促销码在确认与提交之间被别人用尽：中止凭证提交，
				// 会话停在原状态，买家可以返回重新选择
				promoRejections.Inc()
				s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonPromoInvalid})
				return nil
			}
			s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonStoreUnavailable})
			return errors.Wrap(err, "create payment")
		}
		paymentsCreated.Inc()
		proof.PaymentID = paymentID
		// 先持久化再进缓冲：支付单创建 happens-before 图片聚合
		if err := s.sessions.Set(ctx, sessionID, proof); err != nil {
			return errors.Wrap(err, "save session")
		}
		logger.Ctx(ctx).Info().Uint("payment", paymentID).Int64("buyer", buyer.TelegramID).Msg("payment created, waiting for proof burst")
	}

	meta := domain.ProofMeta{
		Buyer:       buyer,
		Quantity:    proof.Quantity,
		Total:       proof.Total,
		PromoCode:   proof.PromoCode,
		SubmittedAt: time.Now(),
	}
	s.buffer.Offer(mediagroup.Key{SessionID: sessionID, GroupID: ev.GroupID}, proof.PaymentID, ev.Image, meta)
	return nil
}

// goBack 把会话送回明确定义的前驱状态。
func (s *Service) goBack(ctx context.Context, buyer domain.Buyer, sessionID string, state domain.SessionState) error {
	switch st := state.(type) {
	case domain.ChoosingQuantity:
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return errors.Wrap(err, "delete session")
		}
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptMainMenu})
		return nil
	case domain.ChoosingPriceTier:
		return s.moveTo(ctx, buyer, sessionID, domain.ChoosingQuantity{}, domain.Prompt{Kind: domain.PromptChooseQuantity})
	case domain.WaitingPromoCode:
		next := domain.ChoosingPriceTier{Quantity: st.Quantity}
		return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptChoosePriceTier})
	case domain.WaitingPaymentConfirm:
		if st.PromoCode != "" {
			// 返回即放弃已输入的促销码，重新进入促销码输入
			next := domain.WaitingPromoCode{Quantity: st.Quantity, TierAmount: s.pricing.Discount * float64(st.Quantity)}
			return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptAskPromoCode})
		}
		next := domain.ChoosingPriceTier{Quantity: st.Quantity}
		return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptChoosePriceTier})
	case domain.WaitingPaymentProof:
		if st.PaymentID != 0 {
			// 支付单已经落库，不能退回到创建之前
			s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptAskProof})
			return nil
		}
		next := domain.WaitingPaymentConfirm{Quantity: st.Quantity, Total: st.Total, PromoCode: st.PromoCode}
		return s.moveTo(ctx, buyer, sessionID, next, domain.Prompt{Kind: domain.PromptPaymentRequisites, Total: st.Total})
	case domain.OnReview:
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptOnReview})
		return nil
	}
	s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptMainMenu})
	return nil
}

// onBurstComplete 是聚合缓冲的 flush 回调：一个批次恰好触发一次。
func (s *Service) onBurstComplete(burst mediagroup.Burst) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "purchase.BurstComplete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("burst.images", len(burst.Images)),
		attribute.Int64("payment.id", int64(burst.PaymentID)),
	)

	submission := domain.Submission{PaymentID: burst.PaymentID, Images: burst.Images, Meta: burst.Meta}
	if err := s.moderation.NotifySubmission(ctx, submission); err != nil {
		// 审核通知失败：会话留在凭证状态，买家再提交一张就会重试
		span.RecordError(err)
		span.SetStatus(codes.Error, "moderation notify failed")
		logger.Ctx(ctx).Error().Err(err).Uint("payment", burst.PaymentID).Msg("failed to hand submission to moderation")
		s.emit(ctx, burst.Meta.Buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonStoreUnavailable})
		return
	}
	burstsFlushed.Inc()

	if err := s.sessions.Set(ctx, burst.Key.SessionID, domain.OnReview{PaymentID: burst.PaymentID}); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("session", burst.Key.SessionID).Msg("failed to move session to on_review")
	}
	s.emit(ctx, burst.Meta.Buyer.TelegramID, domain.Prompt{Kind: domain.PromptOnReview})
	logger.Ctx(ctx).Info().Uint("payment", burst.PaymentID).Int("images", len(burst.Images)).Msg("proof burst handed to moderation")
}

// moveTo 持久化新状态并向买家展示它的内容。
func (s *Service) moveTo(ctx context.Context, buyer domain.Buyer, sessionID string, next domain.SessionState, prompt domain.Prompt) error {
	if err := s.sessions.Set(ctx, sessionID, next); err != nil {
		s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonStoreUnavailable})
		return errors.Wrap(err, "save session")
	}
	s.emit(ctx, buyer.TelegramID, prompt)
	return nil
}

// rejectInput 对不合法或不合时宜的输入自环：状态不变，提示买家。
func (s *Service) rejectInput(ctx context.Context, buyer domain.Buyer, why string) error {
	logger.Ctx(ctx).Debug().Int64("buyer", buyer.TelegramID).Str("why", why).Msg("input rejected")
	s.emit(ctx, buyer.TelegramID, domain.Prompt{Kind: domain.PromptError, Reason: domain.ReasonInvalidInput})
	return nil
}

func (s *Service) emit(ctx context.Context, buyerID int64, prompt domain.Prompt) {
	if err := s.prompter.Prompt(ctx, buyerID, prompt); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("buyer", buyerID).Str("prompt", string(prompt.Kind)).Msg("prompt delivery failed")
	}
}
