// internal/service/moderation/domain/decision.go
package domain

// Decision 是管理员对一笔支付单做出的裁决。
type Decision struct {
	PaymentID       uint  `json:"payment_id"`
	AdminTelegramID int64 `json:"admin_telegram_id"`
	Approve         bool  `json:"approve"`
}

// ArtifactRequest 请求为一张已签发的票渲染并投递凭证图片。
// Seq/Total 用于"第 n 张，共 m 张"的展示。
type ArtifactRequest struct {
	OwnerTelegramID int64  `json:"owner_telegram_id"`
	Token           string `json:"token"`
	Seq             int    `json:"seq"`
	Total           int    `json:"total"`
}

// Outcome 是裁决的结果通知，发回给买家的消息通道。
// Approved 为 true 时 Tokens 携带本次签发的全部令牌。
type Outcome struct {
	BuyerTelegramID int64    `json:"buyer_telegram_id"`
	PaymentID       uint     `json:"payment_id"`
	Approved        bool     `json:"approved"`
	Tokens          []string `json:"tokens,omitempty"`
}
