// internal/service/ledger/infrastructure/gorm_model.go
package infrastructure

import (
	"time"
)

// UserModel 对应数据库中的 users 表
type UserModel struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定 GORM 应该使用的表名
func (UserModel) TableName() string {
	return "users"
}

// PromoCodeModel 对应数据库中的 promo_codes 表
type PromoCodeModel struct {
	ID              uint   `gorm:"primaryKey"`
	Code            string `gorm:"uniqueIndex;size:32"`
	AdminTelegramID int64
	Value           float64 `gorm:"type:decimal(10,2)"`
	UsageLimit      int
	UsedCount       int
	CreatedAt       time.Time
}

func (PromoCodeModel) TableName() string {
	return "promo_codes"
}

// PaymentModel 对应数据库中的 payments 表
type PaymentModel struct {
	ID              uint  `gorm:"primaryKey"`
	BuyerTelegramID int64 `gorm:"index"`
	Quantity        int
	Amount          float64 `gorm:"type:decimal(10,2)"`
	PromoCodeID     *uint
	Status          string `gorm:"size:16;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}

// TicketModel 对应数据库中的 tickets 表
type TicketModel struct {
	ID              uint   `gorm:"primaryKey"`
	Token           string `gorm:"uniqueIndex;size:64"`
	OwnerTelegramID int64  `gorm:"index"`
	PaymentID       uint   `gorm:"index"`
	Status          string `gorm:"size:16;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (TicketModel) TableName() string {
	return "tickets"
}
