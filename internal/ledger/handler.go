package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Handler wires HTTP endpoints for the ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/export.csv", h.exportCSV)
	r.Get("/export.xlsx", h.exportXLSX)
}

func listFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	return ListFilter{
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "per_page", shared.DefaultPerPage),
		MaterialID: httpx.QueryInt64(r, "material_id"),
		Type:       q.Get("type"),
		DateStart:  q.Get("date_start"),
		DateEnd:    q.Get("date_end"),
	}
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var in RecordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	result, err := h.service.Record(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), shared.PrincipalFromContext(r.Context()), listFilter(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ExportCSV(r.Context(), shared.PrincipalFromContext(r.Context()), listFilter(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Attachment(w, out.ContentType, out.Filename, out.Payload)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ExportXLSX(r.Context(), shared.PrincipalFromContext(r.Context()), listFilter(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Attachment(w, out.ContentType, out.Filename, out.Payload)
}
