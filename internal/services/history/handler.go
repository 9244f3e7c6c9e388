package history

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const defaultTopProducts = 5

// Handler handles HTTP requests for sales history and reports
type Handler struct {
	history *History
	logger  *logger.Logger
}

func NewHandler(history *History, log *logger.Logger) *Handler {
	return &Handler{history: history, logger: log}
}

// TicketRoutes mounts the /tickets endpoints on r.
func (h *Handler) TicketRoutes(r chi.Router) {
	r.Get("/", h.ListTickets)
	r.Get("/{id}", h.GetTicket)
	r.Delete("/{id}", h.RemoveTicket)
	r.Get("/{id}/rows", h.ExportTicket)
	r.Get("/{id}/receipt", h.Receipt)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.selectTickets(r)
	if err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := h.history.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Fail(w, r, h.logger, "ticket_lookup_failed", models.ErrTicketNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ticketView(t))
}

// RemoveTicket is idempotent: a missing ticket answers removed=false.
func (h *Handler) RemoveTicket(w http.ResponseWriter, r *http.Request) {
	removed := h.history.Remove(chi.URLParam(r, "id"))
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (h *Handler) ExportTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := h.history.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Fail(w, r, h.logger, "ticket_lookup_failed", models.ErrTicketNotFound)
		return
	}
	rows := models.FlattenTicket(t)
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"header":  models.ExportHeader,
		"records": records,
		"rows":    rows,
	})
}

func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	t, ok := h.history.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Fail(w, r, h.logger, "ticket_lookup_failed", models.ErrTicketNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(models.ReceiptText(t, h.history.Location())))
}

// Report handles GET /reports?period=&from=&to=&limit=
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.selectTickets(r)
	if err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}

	limit := defaultTopProducts
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			httpx.Fail(w, r, h.logger, "validation_failed", httpx.BadRequest("invalid limit %q", v))
			return
		}
	}

	totals := AggregateTotals(tickets)
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"totals":        totals,
		"total_display": models.FormatCurrency(totals.TotalRevenue),
		"top_products":  TopProducts(tickets, limit),
		"by_weekday":    SalesByWeekday(tickets, h.history.Location()),
		"by_day":        SalesByDay(tickets, h.history.Location()),
	})
}

// selectTickets applies ?period=all|today|week|days|custom.
func (h *Handler) selectTickets(r *http.Request) ([]models.Ticket, error) {
	q := r.URL.Query()
	switch period := q.Get("period"); period {
	case "", "all":
		return h.history.All(), nil
	case "today":
		return h.history.FilterToday(), nil
	case "week":
		return h.history.FilterLastNDays(7), nil
	case "days":
		n, err := strconv.Atoi(q.Get("n"))
		if err != nil || n < 0 {
			return nil, httpx.BadRequest("invalid day count %q", q.Get("n"))
		}
		return h.history.FilterLastNDays(n), nil
	case "custom":
		from, err := time.ParseInLocation("2006-01-02", q.Get("from"), h.history.Location())
		if err != nil {
			return nil, httpx.BadRequest("invalid from date %q", q.Get("from"))
		}
		to, err := time.ParseInLocation("2006-01-02", q.Get("to"), h.history.Location())
		if err != nil {
			return nil, httpx.BadRequest("invalid to date %q", q.Get("to"))
		}
		return h.history.FilterByRange(from, to), nil
	default:
		return nil, httpx.BadRequest("unknown period %q", period)
	}
}

func ticketView(t models.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"ticket":             t,
		"subtotal_display":   models.FormatCurrency(t.Subtotal),
		"tax_amount_display": models.FormatCurrency(t.TaxAmount),
		"total_display":      models.FormatCurrency(t.Total),
	}
}
