// internal/service/ledger/domain/ticket.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TicketStatus 定义了票的生命周期状态。
type TicketStatus string

const (
	TicketActive  TicketStatus = "active"  // 可核销
	TicketUsed    TicketStatus = "used"    // 已核销
	TicketExpired TicketStatus = "expired" // 已过期
)

// Ticket 代表一张已签发的票。只在支付单被批准时创建，
// 数量与支付单的 Quantity 严格一致。
type Ticket struct {
	ID              uint
	Token           string
	OwnerTelegramID int64
	PaymentID       uint
	Status          TicketStatus
	CreatedAt       time.Time
}

// MintToken 生成一个票务令牌：持有者ID(hex) + "aa" + Unix时间(hex) + 随机尾部。
// 三个分量叠加让碰撞概率可以忽略，数据库上的唯一索引兜底。
func MintToken(ownerID int64, at time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%xaa%x%x", ownerID, at.Unix(), u[:3])
}
