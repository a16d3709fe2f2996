// internal/service/ledger/infrastructure/mapper.go
package infrastructure

import (
	"lekker/internal/service/ledger/domain"
)

// --- 数据库模型与领域模型之间的转换 ---

func toDomainUser(m *UserModel) *domain.User {
	return &domain.User{
		TelegramID: m.TelegramID,
		Username:   m.Username,
		Name:       m.Name,
		CreatedAt:  m.CreatedAt,
	}
}

func toDomainPromoCode(m *PromoCodeModel) *domain.PromoCode {
	return &domain.PromoCode{
		ID:              m.ID,
		Code:            m.Code,
		AdminTelegramID: m.AdminTelegramID,
		Value:           m.Value,
		UsageLimit:      m.UsageLimit,
		UsedCount:       m.UsedCount,
		CreatedAt:       m.CreatedAt,
	}
}

func toDomainPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:              m.ID,
		BuyerTelegramID: m.BuyerTelegramID,
		Quantity:        m.Quantity,
		Amount:          m.Amount,
		PromoCodeID:     m.PromoCodeID,
		Status:          domain.PaymentStatus(m.Status),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toDomainTicket(m *TicketModel) *domain.Ticket {
	return &domain.Ticket{
		ID:              m.ID,
		Token:           m.Token,
		OwnerTelegramID: m.OwnerTelegramID,
		PaymentID:       m.PaymentID,
		Status:          domain.TicketStatus(m.Status),
		CreatedAt:       m.CreatedAt,
	}
}
