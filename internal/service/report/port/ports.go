// internal/service/report/port/ports.go
package port

import (
	"context"

	ledgerdomain "lekker/internal/service/ledger/domain"
)

// Ledger 是管理面报表依赖的账本操作子集。
type Ledger interface {
	Totals(ctx context.Context) (ledgerdomain.Totals, error)
	ListUsers(ctx context.Context) ([]ledgerdomain.UserTicketCount, error)
	ListPayments(ctx context.Context) ([]ledgerdomain.Payment, error)
	ListTickets(ctx context.Context) ([]ledgerdomain.Ticket, error)
	// UseTicket 入场核销，票不存在或已核销时返回 ErrTicketUnavailable
	UseTicket(ctx context.Context, token string) error
}
