// internal/service/report/interfaces/http_handler.go
package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	ledgerdomain "lekker/internal/service/ledger/domain"
	moderation "lekker/internal/service/moderation/application"
	"lekker/internal/service/report/application"
)

// AdminHandler 封装了管理面的 HTTP 处理器：统计、CSV 导出、
// 入场核销和促销码生成。
type AdminHandler struct {
	reports    *application.Service
	moderation *moderation.Service
}

func NewAdminHandler(reports *application.Service, mod *moderation.Service) *AdminHandler {
	return &AdminHandler{reports: reports, moderation: mod}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/totals", h.handleTotals)
	mux.HandleFunc("/admin/export/users.csv", h.handleExportUsers)
	mux.HandleFunc("/admin/export/payments.csv", h.handleExportPayments)
	mux.HandleFunc("/admin/export/tickets.csv", h.handleExportTickets)
	mux.HandleFunc("/admin/tickets/use", h.handleUseTicket)
	mux.HandleFunc("/admin/promo-codes", h.handleGeneratePromoCode)
}

func (h *AdminHandler) handleTotals(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	totals, err := h.reports.Totals(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users":          totals.Users,
		"active_tickets": totals.ActiveTickets,
		"sales_amount":   totals.SalesAmount,
	})
}

func (h *AdminHandler) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "users.csv", h.reports.ExportUsersCSV)
}

func (h *AdminHandler) handleExportPayments(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "payments.csv", h.reports.ExportPaymentsCSV)
}

func (h *AdminHandler) handleExportTickets(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, "tickets.csv", h.reports.ExportTicketsCSV)
}

func (h *AdminHandler) exportCSV(w http.ResponseWriter, r *http.Request, name string, export func(context.Context, io.Writer) error) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	// 先在内存里写完，失败时还能返回一个干净的 500
	var buf bytes.Buffer
	if err := export(ctx, &buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.Write(buf.Bytes())
}

// handleUseTicket 核销一张票。幂等冲突返回 409。
func (h *AdminHandler) handleUseTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	token := r.URL.Query().Get("token")
	if err := h.reports.UseTicket(ctx, token); err != nil {
		var statusCode int
		switch {
		case errors.Is(err, ledgerdomain.ErrTicketUnavailable):
			statusCode = http.StatusConflict
		default:
			statusCode = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"used": true})
}

// GeneratePromoCodeRequest 是促销码生成接口的请求体。
type GeneratePromoCodeRequest struct {
	AdminTelegramID int64   `json:"admin_telegram_id"`
	Value           float64 `json:"value"`
	UsageLimit      int     `json:"usage_limit"`
}

func (h *AdminHandler) handleGeneratePromoCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req GeneratePromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	code, err := h.moderation.GeneratePromoCode(ctx, req.AdminTelegramID, req.Value, req.UsageLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"code": code})
}
