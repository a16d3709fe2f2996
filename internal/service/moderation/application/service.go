// internal/service/moderation/application/service.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"lekker/internal/pkg/logger"
	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/moderation/domain"
	"lekker/internal/service/moderation/port"
)

// 促销码生成的冲突重试上限。6 位十六进制的空间足够大，
// 连续撞号说明出了别的问题。
const promoCodeRetries = 5

// 单次批准的凭证渲染并发上限。
const artifactConcurrency = 4

// Service 执行管理员侧的裁决：批准即铸票，拒绝即关单，
// 两者都是账本里的一次原子状态迁移，对重复裁决天然免疫。
type Service struct {
	ledger    port.Ledger
	artifacts port.ArtifactSink
	outcomes  port.OutcomeNotifier
	tracer    trace.Tracer
}

func NewService(ledger port.Ledger, artifacts port.ArtifactSink, outcomes port.OutcomeNotifier, tracer trace.Tracer) *Service {
	return &Service{ledger: ledger, artifacts: artifacts, outcomes: outcomes, tracer: tracer}
}

// Approve 批准支付单：账本原子地完成状态迁移和铸票，随后
// 为每张票分发凭证渲染请求并通知买家。
// 单张票的渲染请求失败只影响它自己，其余的票照常投递。
func (s *Service) Approve(ctx context.Context, paymentID uint) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.Approve")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", int64(paymentID)))

	tokens, err := s.ledger.Approve(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "approve payment %d", paymentID)
	}
	decisionsProcessed.WithLabelValues("approved").Inc()
	ticketsMinted.Add(float64(len(tokens)))
	logger.Ctx(ctx).Info().Uint("payment", paymentID).Int("tickets", len(tokens)).Msg("payment approved")

	payment, err := s.ledger.FindPayment(ctx, paymentID)
	if err != nil {
		// 票已经铸出，买家信息拿不到只能放弃通知
		logger.Ctx(ctx).Error().Err(err).Uint("payment", paymentID).Msg("approved payment vanished before notification")
		return tokens, nil
	}

	s.fanOutArtifacts(ctx, payment.BuyerTelegramID, tokens)

	outcome := domain.Outcome{
		BuyerTelegramID: payment.BuyerTelegramID,
		PaymentID:       paymentID,
		Approved:        true,
		Tokens:          tokens,
	}
	if err := s.outcomes.NotifyOutcome(ctx, outcome); err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("payment", paymentID).Msg("failed to notify buyer of approval")
	}
	return tokens, nil
}

// fanOutArtifacts 并发分发凭证渲染请求，逐票隔离失败。
func (s *Service) fanOutArtifacts(ctx context.Context, buyerID int64, tokens []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(artifactConcurrency)
	for i, token := range tokens {
		req := domain.ArtifactRequest{
			OwnerTelegramID: buyerID,
			Token:           token,
			Seq:             i + 1,
			Total:           len(tokens),
		}
		g.Go(func() error {
			if err := s.artifacts.RequestArtifact(gctx, req); err != nil {
				artifactFailures.Inc()
				logger.Ctx(gctx).Error().Err(err).Str("token", req.Token).Msg("ticket artifact request failed")
			}
			// 失败被就地消化，不触发组内取消
			return nil
		})
	}
	_ = g.Wait()
}

// Reject 拒绝支付单并通知买家。
func (s *Service) Reject(ctx context.Context, paymentID uint) error {
	ctx, span := s.tracer.Start(ctx, "moderation.Reject")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", int64(paymentID)))

	if err := s.ledger.Reject(ctx, paymentID); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "reject payment %d", paymentID)
	}
	decisionsProcessed.WithLabelValues("rejected").Inc()
	logger.Ctx(ctx).Info().Uint("payment", paymentID).Msg("payment rejected")

	payment, err := s.ledger.FindPayment(ctx, paymentID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("payment", paymentID).Msg("rejected payment vanished before notification")
		return nil
	}
	outcome := domain.Outcome{BuyerTelegramID: payment.BuyerTelegramID, PaymentID: paymentID}
	if err := s.outcomes.NotifyOutcome(ctx, outcome); err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("payment", paymentID).Msg("failed to notify buyer of rejection")
	}
	return nil
}

// GeneratePromoCode 生成一个新的限量促销码并返回它的代码。
// 随机代码与已有代码冲突时换一个重试，重试有限次。
func (s *Service) GeneratePromoCode(ctx context.Context, adminID int64, value float64, usageLimit int) (string, error) {
	ctx, span := s.tracer.Start(ctx, "moderation.GeneratePromoCode")
	defer span.End()

	if value <= 0 || usageLimit <= 0 {
		return "", errors.New("promo value and usage limit must be positive")
	}

	var lastErr error
	for attempt := 0; attempt < promoCodeRetries; attempt++ {
		code := ledgerdomain.RandomPromoCode()
		promo := ledgerdomain.PromoCode{
			Code:            code,
			AdminTelegramID: adminID,
			Value:           value,
			UsageLimit:      usageLimit,
		}
		if _, err := s.ledger.CreatePromoCode(ctx, promo); err != nil {
			if errors.Is(err, ledgerdomain.ErrPromoExists) {
				lastErr = err
				continue
			}
			span.RecordError(err)
			return "", errors.Wrap(err, "create promo code")
		}
		logger.Ctx(ctx).Info().Str("code", code).Int64("admin", adminID).Msg("promo code generated")
		return code, nil
	}
	return "", errors.Wrap(lastErr, "could not find a free promo code")
}
