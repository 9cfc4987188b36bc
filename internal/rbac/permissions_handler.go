package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// PermissionsHandler exposes the caller's effective permissions.
type PermissionsHandler struct {
	logger *slog.Logger
	source PermissionSource
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, source PermissionSource) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, source: source}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	User        shared.Principal `json:"user"`
	Permissions []string         `json:"permissions"`
	CanManage   bool             `json:"can_manage"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	if p.IsZero() {
		httpx.RespondError(w, r, h.logger, shared.NewError(shared.ErrUnauthorized, "Sign in required."))
		return
	}
	perms, err := h.source.EffectivePermissions(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		User:        p,
		Permissions: perms,
		CanManage:   hasAnyPermission(perms, ManagePermissions),
	})
}
