// internal/service/purchase/domain/session.go
package domain

// SessionState 是购买会话的状态标签联合：每个状态一个结构体，
// 只携带该状态下合法可读的字段。这样"在总价算出来之前读总价"
// 这类错误在编译期就不可能发生，而不是运行时字典取值失败。
type SessionState interface {
	stateName() string
}

// Idle 没有进行中的购买。
type Idle struct{}

// ChoosingQuantity 等待买家选择购票数量。
type ChoosingQuantity struct{}

// ChoosingPriceTier 已选数量，等待选择价格档位。
type ChoosingPriceTier struct {
	Quantity int `json:"quantity"`
}

// WaitingPromoCode 选择了 discount 档，等待输入促销码。
// TierAmount 是档位价算出的总价，促销码生效时会被取代。
type WaitingPromoCode struct {
	Quantity   int     `json:"quantity"`
	TierAmount float64 `json:"tier_amount"`
}

// WaitingPaymentConfirm 总价已定，等待买家确认已转账。
type WaitingPaymentConfirm struct {
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
	PromoCode string  `json:"promo_code,omitempty"` // 为空表示未用促销码
}

// WaitingPaymentProof 等待买家提交支付凭证截图。
// PaymentID 在第一张凭证落库之后才非零。
type WaitingPaymentProof struct {
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
	PromoCode string  `json:"promo_code,omitempty"`
	PaymentID uint    `json:"payment_id,omitempty"`
}

// OnReview 凭证已转交审核，本次购买流程到此为止；
// 新的购买从 Idle 重新开始。
type OnReview struct {
	PaymentID uint `json:"payment_id"`
}

func (Idle) stateName() string                  { return "idle" }
func (ChoosingQuantity) stateName() string      { return "choosing_quantity" }
func (ChoosingPriceTier) stateName() string     { return "choosing_price_tier" }
func (WaitingPromoCode) stateName() string      { return "waiting_promo_code" }
func (WaitingPaymentConfirm) stateName() string { return "waiting_payment_confirm" }
func (WaitingPaymentProof) stateName() string   { return "waiting_payment_proof" }
func (OnReview) stateName() string              { return "on_review" }

// StateName 返回状态的稳定名称，用于日志和序列化封皮。
func StateName(s SessionState) string {
	if s == nil {
		return "idle"
	}
	return s.stateName()
}
