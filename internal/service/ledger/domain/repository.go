// internal/service/ledger/domain/repository.go
package domain

import "context"

// UserTicketCount 是报表用的一行快照：用户及其持有的有效票数。
type UserTicketCount struct {
	User
	ActiveTickets int64
}

// Totals 是管理面的汇总统计。
type Totals struct {
	Users         int64
	ActiveTickets int64
	// SalesAmount 只统计已批准的支付单
	SalesAmount float64
}

// Repository 定义了账本存储的持久化接口。
// 它位于领域层，由基础设施层基于关系数据库实现；
// 所有带有并发语义的方法（CreatePayment / Approve / Reject / UseTicket）
// 都必须在单个数据库事务内完成，并依赖行级锁保证正确性。
type Repository interface {
	// UpsertUser 插入用户，已存在时刷新用户名和显示名。
	UpsertUser(ctx context.Context, user User) error

	// FindPromoCode 按代码查找促销码，不存在时返回 ErrNotFound。
	FindPromoCode(ctx context.Context, code string) (*PromoCode, error)

	// CreatePromoCode 新建促销码，代码冲突时返回 ErrPromoExists。
	CreatePromoCode(ctx context.Context, promo PromoCode) (uint, error)

	// CreatePayment 原子地完成促销码兑换与支付单创建：
	// 指定 promoCode 时校验其存在且未用尽并占用一次额度，
	// 任何一步失败则整体回滚且无任何写入。promoCode 为空表示无促销码。
	CreatePayment(ctx context.Context, buyerID int64, quantity int, amount float64, promoCode string) (uint, error)

	// FindPayment 按 ID 查找支付单，不存在时返回 ErrNotFound。
	FindPayment(ctx context.Context, id uint) (*Payment, error)

	// Approve 原子地把支付单从 pending 置为 approved 并签发
	// 恰好 Quantity 张票，按创建顺序返回令牌。
	// 非 pending 状态返回 ErrAlreadyProcessed，不存在返回 ErrNotFound。
	Approve(ctx context.Context, paymentID uint) ([]string, error)

	// Reject 原子地把支付单从 pending 置为 rejected，
	// 语义与 Approve 的失败分支一致。
	Reject(ctx context.Context, paymentID uint) error

	// UseTicket 核销一张票（active → used），
	// 票不存在或已核销时返回 ErrTicketUnavailable。
	UseTicket(ctx context.Context, token string) error

	// ActiveTicketCount 返回某个用户持有的有效票数。
	ActiveTicketCount(ctx context.Context, ownerID int64) (int64, error)

	// Totals 返回管理面的汇总统计。
	Totals(ctx context.Context) (Totals, error)

	// 以下为报表导出用的只读快照，无任何核心不变式依赖它们。
	ListUsers(ctx context.Context) ([]UserTicketCount, error)
	ListPayments(ctx context.Context) ([]Payment, error)
	ListTickets(ctx context.Context) ([]Ticket, error)
}
