package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/order/internal/domain"
	"restaurant-pos/internal/services/order/internal/validation"
	"restaurant-pos/internal/storage"
)

// CatalogReader is what the order endpoints read from the price catalog.
type CatalogReader interface {
	Tables() []int
	TaxRate() decimal.Decimal
}

// SyncMonitor exposes the persistence state of the terminal.
type SyncMonitor interface {
	Status() storage.SyncStatus
	Retry(ctx context.Context) error
}

// Handler handles HTTP requests for open table orders
type Handler struct {
	book    *Book
	catalog CatalogReader
	sync    SyncMonitor
	logger  *logger.Logger
}

func NewHandler(book *Book, catalog CatalogReader, sync SyncMonitor, log *logger.Logger) *Handler {
	return &Handler{book: book, catalog: catalog, sync: sync, logger: log}
}

// Routes mounts the /tables endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListTables)
	r.Get("/{table}", h.GetTable)
	r.Delete("/{table}", h.ClearTable)
	r.Post("/{table}/lines", h.AddLine)
	r.Delete("/{table}/lines/{lineID}", h.RemoveLine)
	r.Post("/{table}/settle", h.Settle)
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tables": h.book.Statuses(h.catalog.Tables()),
	})
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}
	h.writeTable(w, table, http.StatusOK)
}

func (h *Handler) writeTable(w http.ResponseWriter, table, status int) {
	order, open := h.book.Order(table)
	total := h.book.TableTotal(table)
	httpx.WriteJSON(w, status, map[string]interface{}{
		"table_number":  table,
		"occupied":      open,
		"order":         order,
		"total":         total,
		"total_display": models.FormatCurrency(total),
	})
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}

	var req domain.LineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}
	if err := validation.ValidateLineRequest(&req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", httpx.BadRequest("%v", err))
		return
	}

	var err error
	if req.IsMenuProduct() {
		_, err = h.book.AddProduct(table, req.Section, req.Category, req.Variant, req.Quantity)
	} else {
		_, err = h.book.AddLine(table, req.ProductName, *req.UnitPrice, req.Quantity)
	}
	if err != nil {
		httpx.Fail(w, r, h.logger, "line_add_failed", err)
		return
	}
	h.writeTable(w, table, http.StatusCreated)
}

// RemoveLine is idempotent: removed=false when nothing matched.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}
	removed := h.book.RemoveLine(table, chi.URLParam(r, "lineID"))
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"total":   h.book.TableTotal(table),
	})
}

func (h *Handler) ClearTable(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"cleared": h.book.ClearTable(table)})
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ticket, err := h.book.Settle(ctx, table, h.catalog.TaxRate())
	if err != nil {
		httpx.Fail(w, r, h.logger, "settle_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"ticket":             ticket,
		"subtotal_display":   models.FormatCurrency(ticket.Subtotal),
		"tax_amount_display": models.FormatCurrency(ticket.TaxAmount),
		"total_display":      models.FormatCurrency(ticket.Total),
	})
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.sync.Status()
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "pos-service",
		"in_sync":   status.InSync,
	}
	if !status.InSync {
		response["status"] = "degraded"
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

// SyncStatus handles GET /sync
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.sync.Status())
}

// RetrySync handles POST /sync/retry
func (h *Handler) RetrySync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.sync.Retry(ctx); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, h.sync.Status())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.sync.Status())
}

func (h *Handler) tableParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil || table <= 0 {
		httpx.Fail(w, r, h.logger, "validation_failed", httpx.BadRequest("invalid table number %q", chi.URLParam(r, "table")))
		return 0, false
	}
	return table, true
}
