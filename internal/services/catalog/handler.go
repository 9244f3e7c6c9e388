package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// Handler handles HTTP requests for the price catalog
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.GetCatalog)
	r.Get("/price", h.GetPrice)
	r.Put("/prices", h.SetPrice)
	r.Post("/tables", h.AddTable)
	r.Delete("/tables/{table}", h.RemoveTable)
	r.Put("/tax-rate", h.SetTaxRate)
	r.Put("/dark-mode", h.SetDarkMode)
	r.Post("/reset", h.Reset)
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c := h.service.Catalog()
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"catalog":     c,
		"tax_percent": c.TaxRate.Shift(2).String(),
	})
}

// GetPrice handles GET /catalog/price?section=&category=&variant=
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	section, category, variant := q.Get("section"), q.Get("category"), q.Get("variant")

	name, price, err := h.service.Product(section, category, variant)
	if err != nil {
		httpx.Fail(w, r, h.logger, "price_lookup_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"product_name":  name,
		"unit_price":    price,
		"price_display": models.FormatCurrency(price),
	})
}

type setPriceRequest struct {
	Section  string          `json:"section"`
	Category string          `json:"category"`
	Variant  string          `json:"variant"`
	Price    decimal.Decimal `json:"price"`
}

func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}
	if err := h.service.SetPrice(req.Section, req.Category, req.Variant, req.Price); err != nil {
		httpx.Fail(w, r, h.logger, "price_update_failed", err)
		return
	}
	h.GetCatalog(w, r)
}

type addTableRequest struct {
	Table json.RawMessage `json:"table"`
}

// AddTable accepts the table number as a JSON number or string.
func (h *Handler) AddTable(w http.ResponseWriter, r *http.Request) {
	var req addTableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}

	text := string(req.Table)
	var s string
	if err := json.Unmarshal(req.Table, &s); err == nil {
		text = s
	}
	n, err := models.ParseTableNumber(text)
	if err == nil {
		err = h.service.AddTable(n)
	}
	if err != nil {
		httpx.Fail(w, r, h.logger, "table_add_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{"tables": h.service.Tables()})
}

func (h *Handler) RemoveTable(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", httpx.BadRequest("invalid table number"))
		return
	}
	if err := h.service.RemoveTable(n); err != nil {
		httpx.Fail(w, r, h.logger, "table_remove_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"tables": h.service.Tables()})
}

// setTaxRateRequest carries either a fraction (rate) or a percentage (percent).
type setTaxRateRequest struct {
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

func (h *Handler) SetTaxRate(w http.ResponseWriter, r *http.Request) {
	var req setTaxRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}

	var rate decimal.Decimal
	switch {
	case req.Rate != nil:
		rate = *req.Rate
	case req.Percent != nil:
		rate = req.Percent.Shift(-2)
	default:
		httpx.Fail(w, r, h.logger, "validation_failed", httpx.BadRequest("rate or percent is required"))
		return
	}

	if err := h.service.SetTaxRate(rate); err != nil {
		httpx.Fail(w, r, h.logger, "tax_rate_update_failed", err)
		return
	}
	h.GetCatalog(w, r)
}

type setDarkModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	var req setDarkModeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, h.logger, "validation_failed", err)
		return
	}
	if err := h.service.SetDarkMode(req.Enabled); err != nil {
		httpx.Fail(w, r, h.logger, "dark_mode_update_failed", err)
		return
	}
	h.GetCatalog(w, r)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetToDefault(); err != nil {
		httpx.Fail(w, r, h.logger, "catalog_reset_failed", err)
		return
	}
	h.GetCatalog(w, r)
}
