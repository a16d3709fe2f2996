// internal/service/ledger/domain/payment.go
package domain

import "time"

// PaymentStatus 定义了支付单（待审核的购买请求）的生命周期状态。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"  // 已提交凭证，等待审核
	PaymentApproved PaymentStatus = "approved" // 审核通过，已出票
	PaymentRejected PaymentStatus = "rejected" // 审核拒绝
)

// Payment 代表一次待审核的购买请求。
// 每次提交支付凭证都恰好创建一条记录；状态只会由审核流程
// 从 pending 迁移到一个终态，且只迁移一次。
type Payment struct {
	ID              uint
	BuyerTelegramID int64
	Quantity        int
	Amount          float64
	PromoCodeID     *uint
	Status          PaymentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
