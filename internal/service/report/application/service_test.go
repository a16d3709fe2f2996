// internal/service/report/application/service_test.go
package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ledgerdomain "lekker/internal/service/ledger/domain"
)

type fakeLedger struct {
	totals   ledgerdomain.Totals
	users    []ledgerdomain.UserTicketCount
	payments []ledgerdomain.Payment
	tickets  []ledgerdomain.Ticket
	used     []string
	useErr   error
}

func (f *fakeLedger) Totals(context.Context) (ledgerdomain.Totals, error) { return f.totals, nil }
func (f *fakeLedger) ListUsers(context.Context) ([]ledgerdomain.UserTicketCount, error) {
	return f.users, nil
}
func (f *fakeLedger) ListPayments(context.Context) ([]ledgerdomain.Payment, error) {
	return f.payments, nil
}
func (f *fakeLedger) ListTickets(context.Context) ([]ledgerdomain.Ticket, error) {
	return f.tickets, nil
}
func (f *fakeLedger) UseTicket(_ context.Context, token string) error {
	if f.useErr != nil {
		return f.useErr
	}
	f.used = append(f.used, token)
	return nil
}

func newTestService(ledger *fakeLedger) *Service {
	return NewService(ledger, noop.NewTracerProvider().Tracer("test"))
}

func parseCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportUsersCSV(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{users: []ledgerdomain.UserTicketCount{
		{User: ledgerdomain.User{TelegramID: 42, Username: "ada", Name: "Ada", CreatedAt: at}, ActiveTickets: 2},
		{User: ledgerdomain.User{TelegramID: 43, Username: "bob", Name: "Bob", CreatedAt: at}},
	}}
	svc := newTestService(ledger)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportUsersCSV(context.Background(), &buf))

	records := parseCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"telegram_id", "username", "name", "active_tickets", "created_at"}, records[0])
	assert.Equal(t, []string{"42", "ada", "Ada", "2", "2026-08-30T12:00:00Z"}, records[1])
	assert.Equal(t, "0", records[2][3])
}

func TestExportPaymentsCSVHandlesOptionalPromo(t *testing.T) {
	promoID := uint(7)
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{payments: []ledgerdomain.Payment{
		{ID: 1, BuyerTelegramID: 42, Quantity: 2, Amount: 1000, PromoCodeID: &promoID, Status: ledgerdomain.PaymentApproved, CreatedAt: at},
		{ID: 2, BuyerTelegramID: 43, Quantity: 1, Amount: 1100, Status: ledgerdomain.PaymentPending, CreatedAt: at},
	}}
	svc := newTestService(ledger)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportPaymentsCSV(context.Background(), &buf))

	records := parseCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"1", "42", "2", "1000.00", "7", "approved", "2026-08-30T12:00:00Z"}, records[1])
	assert.Equal(t, "", records[2][4])
}

func TestExportTicketsCSV(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{tickets: []ledgerdomain.Ticket{
		{ID: 1, Token: "tok1", OwnerTelegramID: 42, PaymentID: 5, Status: ledgerdomain.TicketActive, CreatedAt: at},
	}}
	svc := newTestService(ledger)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportTicketsCSV(context.Background(), &buf))

	records := parseCSV(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"1", "tok1", "42", "5", "active", "2026-08-30T12:00:00Z"}, records[1])
}

func TestUseTicketRejectsEmptyToken(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(ledger)

	err := svc.UseTicket(context.Background(), "")
	require.ErrorIs(t, err, ledgerdomain.ErrTicketUnavailable)
	assert.Empty(t, ledger.used)

	require.NoError(t, svc.UseTicket(context.Background(), "tok1"))
	assert.Equal(t, []string{"tok1"}, ledger.used)
}
