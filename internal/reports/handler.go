package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Handler exposes the report aggregates.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/overview", h.overview)
	r.Get("/purchases", h.purchases)
	r.Get("/usage", h.usage)
	r.Get("/purchases.csv", h.purchasesCSV)
	r.Get("/usage.csv", h.usageCSV)
}

func (h *Handler) rangeOf(r *http.Request) shared.DateRange {
	q := r.URL.Query()
	return h.service.Range(q.Get("date_start"), q.Get("date_end"))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Summary(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Overview(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.PurchasesByMaterial(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.UsageByMaterial(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) purchasesCSV(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.PurchasesByMaterial(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	payload, err := PurchasesCSV(lines)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Attachment(w, "text/csv; charset=utf-8", reportFilename("purchases", h.service.now()), payload)
}

func (h *Handler) usageCSV(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.UsageByMaterial(r.Context(), shared.PrincipalFromContext(r.Context()), h.rangeOf(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	payload, err := UsageCSV(lines)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Attachment(w, "text/csv; charset=utf-8", reportFilename("usage", h.service.now()), payload)
}
