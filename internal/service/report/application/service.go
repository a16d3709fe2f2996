// internal/service/report/application/service.go
package application

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/report/port"
)

// Service 提供管理面的统计汇总、CSV 导出和入场核销。
// 全部是只读快照加一个幂等的核销操作，没有自己的状态。
type Service struct {
	ledger port.Ledger
	tracer trace.Tracer
}

func NewService(ledger port.Ledger, tracer trace.Tracer) *Service {
	return &Service{ledger: ledger, tracer: tracer}
}

// Totals 返回管理面的汇总统计。
func (s *Service) Totals(ctx context.Context) (ledgerdomain.Totals, error) {
	ctx, span := s.tracer.Start(ctx, "report.Totals")
	defer span.End()
	return s.ledger.Totals(ctx)
}

// UseTicket 核销一张票。
func (s *Service) UseTicket(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "report.UseTicket")
	defer span.End()
	if token == "" {
		return ledgerdomain.ErrTicketUnavailable
	}
	return s.ledger.UseTicket(ctx, token)
}

// ExportUsersCSV 把用户名册连同各自的有效票数写成 CSV。
func (s *Service) ExportUsersCSV(ctx context.Context, w io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "report.ExportUsersCSV")
	defer span.End()

	rows, err := s.ledger.ListUsers(ctx)
	if err != nil {
		return errors.Wrap(err, "list users")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"telegram_id", "username", "name", "active_tickets", "created_at"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.TelegramID, 10),
			row.Username,
			row.Name,
			strconv.FormatInt(row.ActiveTickets, 10),
			row.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// ExportPaymentsCSV 把全部支付单写成 CSV。
func (s *Service) ExportPaymentsCSV(ctx context.Context, w io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "report.ExportPaymentsCSV")
	defer span.End()

	rows, err := s.ledger.ListPayments(ctx)
	if err != nil {
		return errors.Wrap(err, "list payments")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "buyer_telegram_id", "quantity", "amount", "promo_code_id", "status", "created_at"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, p := range rows {
		promoID := ""
		if p.PromoCodeID != nil {
			promoID = strconv.FormatUint(uint64(*p.PromoCodeID), 10)
		}
		record := []string{
			strconv.FormatUint(uint64(p.ID), 10),
			strconv.FormatInt(p.BuyerTelegramID, 10),
			strconv.Itoa(p.Quantity),
			strconv.FormatFloat(p.Amount, 'f', 2, 64),
			promoID,
			string(p.Status),
			p.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// ExportTicketsCSV 把全部票写成 CSV。
func (s *Service) ExportTicketsCSV(ctx context.Context, w io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "report.ExportTicketsCSV")
	defer span.End()

	rows, err := s.ledger.ListTickets(ctx)
	if err != nil {
		return errors.Wrap(err, "list tickets")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "token", "owner_telegram_id", "payment_id", "status", "created_at"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, t := range rows {
		record := []string{
			strconv.FormatUint(uint64(t.ID), 10),
			t.Token,
			strconv.FormatInt(t.OwnerTelegramID, 10),
			strconv.FormatUint(uint64(t.PaymentID), 10),
			string(t.Status),
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
