package materials

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), manager)))
		})
	})
	r.Route("/materials", h.MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(newTestService(repo))

	rec := doJSON(t, router, http.MethodPost, "/materials", `{"name":"Flour","unit_type":"kg","quantity":0,"warning_quantity":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Flour", created.Name)

	rec = doJSON(t, router, http.MethodPost, "/materials", `{"name":"FLOUR","unit_type":"kg"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already exists")

	rec = doJSON(t, router, http.MethodPatch, "/materials/1", `{"supplier":"Mill Co","price":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Mill Co", updated.Supplier)
	require.False(t, updated.Price.Valid)

	rec = doJSON(t, router, http.MethodPatch, "/materials/1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/materials?per_page=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page shared.Page[Material]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)

	repo.txCounts[1] = 2
	rec = doJSON(t, router, http.MethodDelete, "/materials/1", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/materials/abc", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerMalformedBody(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepo()))
	rec := doJSON(t, router, http.MethodPost, "/materials", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
