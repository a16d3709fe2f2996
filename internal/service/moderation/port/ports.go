// internal/service/moderation/port/ports.go
package port

import (
	"context"

	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/moderation/domain"
)

// Ledger 是裁决流程依赖的账本操作子集。
type Ledger interface {
	FindPayment(ctx context.Context, id uint) (*ledgerdomain.Payment, error)
	// Approve 原子地批准支付单并签发票，返回令牌
	Approve(ctx context.Context, paymentID uint) ([]string, error)
	Reject(ctx context.Context, paymentID uint) error
	CreatePromoCode(ctx context.Context, promo ledgerdomain.PromoCode) (uint, error)
}

// ArtifactSink 接收单张票的凭证渲染请求。
type ArtifactSink interface {
	RequestArtifact(ctx context.Context, req domain.ArtifactRequest) error
}

// OutcomeNotifier 把裁决结果发回买家的消息通道。
type OutcomeNotifier interface {
	NotifyOutcome(ctx context.Context, outcome domain.Outcome) error
}
