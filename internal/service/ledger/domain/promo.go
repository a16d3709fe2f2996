// internal/service/ledger/domain/promo.go
package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PromoCode 是一个限量使用的促销码。
// 兑换时数据库保证 UsedCount 永远不会超过 UsageLimit，
// 应用层的预检查只用于给买家更友好的提示，并不承担正确性。
type PromoCode struct {
	ID              uint
	Code            string
	AdminTelegramID int64
	// Value 是使用该促销码后的单张票价，会取代档位价参与总价计算
	Value      float64
	UsageLimit int
	UsedCount  int
	CreatedAt  time.Time
}

// Exhausted 报告促销码的使用额度是否已经用完。
func (p *PromoCode) Exhausted() bool {
	return p.UsedCount >= p.UsageLimit
}

// RandomPromoCode 生成一个 6 位大写十六进制的短促销码。
func RandomPromoCode() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:3]))
}
