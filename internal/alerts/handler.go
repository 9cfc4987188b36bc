package alerts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// NoticeSource pops the pending notice.
type NoticeSource interface {
	Pop(ctx context.Context) (Notice, bool, error)
}

// Handler exposes the pending low-stock notice.
type Handler struct {
	logger  *slog.Logger
	notices NoticeSource
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, notices NoticeSource) *Handler {
	return &Handler{logger: logger, notices: notices}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/notice", h.popNotice)
}

func (h *Handler) popNotice(w http.ResponseWriter, r *http.Request) {
	n, ok, err := h.notices.Pop(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, shared.Persistence(shared.ErrPersistence, err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}
