// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

type problemKind struct {
	kind   error
	status int
	title  string
}

var problemKinds = []problemKind{
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{shared.ErrConflict, http.StatusConflict, "Conflict"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrReferential, http.StatusConflict, "Referenced"},
	{shared.ErrInsufficientStock, http.StatusUnprocessableEntity, "Insufficient Stock"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// StatusFor resolves the HTTP status for err.
func StatusFor(err error) int {
	for _, pk := range problemKinds {
		if errors.Is(err, pk.kind) {
			return pk.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Persistence failures are logged and answered with a generic message.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, pk := range problemKinds {
		if errors.Is(err, pk.kind) {
			Problem(w, pk.status, pk.title, shared.UserSafeMessage(err))
			return
		}
	}
	if logger != nil {
		logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
}
