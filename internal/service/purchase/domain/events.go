// internal/service/purchase/domain/events.go
package domain

import "time"

// PriceTier 是固定的两档票价。
type PriceTier string

const (
	// TierDiscount 折扣档：要求完成社交任务，之后可以输入促销码
	TierDiscount PriceTier = "discount"
	// TierStandard 标准档：直接按档位价结算
	TierStandard PriceTier = "standard"
)

// Event 是驱动购买状态机的买家输入事件。
type Event interface {
	isEvent()
}

// StartPurchase 开始一次新的购买，进入数量选择。
type StartPurchase struct{}

// SelectQuantity 买家选定购票数量。
type SelectQuantity struct {
	Quantity int
}

// SelectTier 买家选定价格档位。
type SelectTier struct {
	Tier PriceTier
}

// EnterPromoCode 买家输入了一个促销码（自由文本）。
type EnterPromoCode struct {
	Code string
}

// ConfirmPaid 买家声明已完成转账。
type ConfirmPaid struct{}

// SubmitProof 买家提交了一张支付凭证图片。
// GroupID 非空时表示属于一个相册（burst），由聚合缓冲去抖；
// 为空表示单图提交，立即视为完整批次。
type SubmitProof struct {
	Image   ProofImage
	GroupID string
}

// Back 回到上一个状态。
type Back struct{}

// CancelPurchase 放弃本次购买，回到 Idle。
type CancelPurchase struct{}

func (StartPurchase) isEvent()  {}
func (SelectQuantity) isEvent() {}
func (SelectTier) isEvent()     {}
func (EnterPromoCode) isEvent() {}
func (ConfirmPaid) isEvent()    {}
func (SubmitProof) isEvent()    {}
func (Back) isEvent()           {}
func (CancelPurchase) isEvent() {}

// Buyer 标识事件的发起者。每次交互都会刷新用户表。
type Buyer struct {
	TelegramID int64
	Username   string
	Name       string
}

// ProofImage 是买家提交的一张支付凭证。
type ProofImage struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

// ProofMeta 是一次凭证提交的附加信息。
// 同一 burst 内多次提交时以最后一次为准（last-write-wins）。
type ProofMeta struct {
	Buyer       Buyer     `json:"buyer"`
	Quantity    int       `json:"quantity"`
	Total       float64   `json:"total"`
	PromoCode   string    `json:"promo_code,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submission 是一次完整的凭证提交，聚合缓冲判定批次完整后
// 交给审核通道。
type Submission struct {
	PaymentID uint         `json:"payment_id"`
	Images    []ProofImage `json:"images"`
	Meta      ProofMeta    `json:"meta"`
}
