// internal/service/purchase/port/ports.go
package port

import (
	"context"

	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/purchase/domain"
)

// Ledger 是购买流程依赖的账本操作子集。
type Ledger interface {
	UpsertUser(ctx context.Context, user ledgerdomain.User) error
	FindPromoCode(ctx context.Context, code string) (*ledgerdomain.PromoCode, error)
	// CreatePayment 原子地兑换促销码并创建 pending 支付单
	CreatePayment(ctx context.Context, buyerID int64, quantity int, amount float64, promoCode string) (uint, error)
}

// SessionStore 持久化买家会话。不存在的会话返回 Idle。
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domain.SessionState, error)
	Set(ctx context.Context, sessionID string, state domain.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// Prompter 请求外部消息通道向买家展示某个状态的内容。
type Prompter interface {
	Prompt(ctx context.Context, buyerID int64, prompt domain.Prompt) error
}

// ModerationNotifier 把一次完整的凭证提交转交给审核通道。
type ModerationNotifier interface {
	NotifySubmission(ctx context.Context, submission domain.Submission) error
}
