// internal/service/ledger/domain/errors.go
package domain

import "errors"

var (
	// ErrPromoInvalid 促销码不存在或额度已用完
	ErrPromoInvalid = errors.New("promo code not found or fully redeemed")
	// ErrPromoExists 生成的促销码与已有记录冲突
	ErrPromoExists = errors.New("promo code already exists")
	// ErrAlreadyProcessed 支付单已被其他审核动作处理过
	ErrAlreadyProcessed = errors.New("payment already processed")
	// ErrNotFound 标识符没有对应的记录
	ErrNotFound = errors.New("record not found")
	// ErrTicketUnavailable 票不存在或不处于可核销状态
	ErrTicketUnavailable = errors.New("ticket not found or not active")
	// ErrInvalidQuantity 数量必须为正
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
