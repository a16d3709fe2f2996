// internal/service/purchase/domain/prompt.go
package domain

// PromptKind 告诉外部的消息通道应当向买家展示哪个状态的内容。
// 具体的文案、键盘和渲染完全由通道自己决定。
type PromptKind string

const (
	PromptMainMenu          PromptKind = "main_menu"
	PromptChooseQuantity    PromptKind = "choose_quantity"
	PromptChoosePriceTier   PromptKind = "choose_price_tier"
	PromptAskPromoCode      PromptKind = "ask_promo_code"
	PromptPaymentRequisites PromptKind = "payment_requisites"
	PromptAskProof          PromptKind = "ask_proof"
	PromptOnReview          PromptKind = "on_review"
	PromptError             PromptKind = "error"
)

// ErrorReason 给 PromptError 一个机器可读的原因码。
type ErrorReason string

const (
	ReasonInvalidInput     ErrorReason = "invalid_input"
	ReasonPromoInvalid     ErrorReason = "promo_invalid"
	ReasonStoreUnavailable ErrorReason = "store_unavailable"
)

// Prompt 是状态机发出的"展示这个状态"请求。
type Prompt struct {
	Kind PromptKind `json:"kind"`
	// Total 只在 PromptPaymentRequisites 时有意义
	Total float64 `json:"total,omitempty"`
	// Reason 只在 PromptError 时有意义
	Reason ErrorReason `json:"reason,omitempty"`
}
