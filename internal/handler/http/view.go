package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/myreviews/storefront/internal/catalog"
	"github.com/myreviews/storefront/internal/session"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/httputil"
	"github.com/myreviews/storefront/pkg/pagination"
)

// ViewHandler exposes the session's catalog view as JSON.
type ViewHandler struct {
	logger *slog.Logger
}

// NewViewHandler creates the JSON view handler.
func NewViewHandler(logger *slog.Logger) *ViewHandler {
	return &ViewHandler{logger: logger}
}

// --- Request DTOs ---

// FetchRequest re-fetches a page with a filter.
type FetchRequest struct {
	Page   int    `json:"page" validate:"gte=0"`
	Filter string `json:"filter" validate:"max=200"`
}

// PageRequest moves to another page.
type PageRequest struct {
	Page int `json:"page" validate:"required,gte=1"`
}

// FilterRequest replaces the search text.
type FilterRequest struct {
	Filter string `json:"filter" validate:"max=200"`
}

// DraftRequest replaces the comment draft.
type DraftRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

// --- Response DTOs ---

// ToggleResponse reports a product's membership after a toggle.
type ToggleResponse struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
	Count    int    `json:"count"`
}

// RegisterRoutes mounts the view API. The router must already run the
// session middleware. Mutating routes are rate limited per session.
func (h *ViewHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.GetCatalog)

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/catalog/fetch", h.Fetch)
		r.Post("/catalog/page", h.SetPage)
		r.Post("/catalog/filter", h.SetFilter)
		r.Post("/favorites/{id}", h.ToggleFavorite)
		r.Post("/cart/{id}", h.ToggleCart)
		r.Post("/modal/{id}", h.OpenProduct)
		r.Delete("/modal", h.CloseProduct)
		r.Put("/draft", h.SetDraft)
		r.Post("/comments", h.SubmitComment)
	})
}

// GetCatalog handles GET /catalog. Optional ?page= and ?q= behave like the
// catalog page; without them the current view is returned, fetched on first
// use.
func (h *ViewHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c := controller(r)
	snap := c.Snapshot()

	query := r.URL.Query()
	page := pagination.PageFromRequest(r, snap.Page)
	filter := snap.Filter
	if query.Has("q") {
		filter = strings.TrimSpace(query.Get("q"))
	}

	_ = c.Sync(r.Context(), page, filter)
	h.writeSnapshot(w, r)
}

// Fetch handles POST /catalog/fetch.
func (h *ViewHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	_ = controller(r).Load(r.Context(), req.Page, strings.TrimSpace(req.Filter))
	h.writeSnapshot(w, r)
}

// SetPage handles POST /catalog/page.
func (h *ViewHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	_ = controller(r).SetPage(r.Context(), req.Page)
	h.writeSnapshot(w, r)
}

// SetFilter handles POST /catalog/filter.
func (h *ViewHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	_ = controller(r).SetFilter(r.Context(), strings.TrimSpace(req.Filter))
	h.writeSnapshot(w, r)
}

// ToggleFavorite handles POST /favorites/{id}.
func (h *ViewHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	c := controller(r)
	id := chi.URLParam(r, "id")
	selected := c.ToggleFavorite(id)
	httputil.WriteData(w, http.StatusOK, ToggleResponse{ID: id, Selected: selected, Count: c.Snapshot().FavoritesCount})
}

// ToggleCart handles POST /cart/{id}.
func (h *ViewHandler) ToggleCart(w http.ResponseWriter, r *http.Request) {
	c := controller(r)
	id := chi.URLParam(r, "id")
	selected := c.ToggleCart(id)
	httputil.WriteData(w, http.StatusOK, ToggleResponse{ID: id, Selected: selected, Count: c.Snapshot().CartCount})
}

// OpenProduct handles POST /modal/{id}.
func (h *ViewHandler) OpenProduct(w http.ResponseWriter, r *http.Request) {
	c := controller(r)
	if err := c.OpenProduct(chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c.Snapshot())
}

// CloseProduct handles DELETE /modal.
func (h *ViewHandler) CloseProduct(w http.ResponseWriter, r *http.Request) {
	controller(r).CloseProduct()
	w.WriteHeader(http.StatusNoContent)
}

// SetDraft handles PUT /draft.
func (h *ViewHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := controller(r).SetDraft(req.Content); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitComment handles POST /comments, sending the current draft.
func (h *ViewHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	comment, err := controller(r).SubmitComment(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, comment)
}

// writeSnapshot writes the session's view. Fetch errors are not passed in:
// the controller logs them and they show up as an empty view with
// last_outcome "error". A fetch superseded by a concurrent request returns
// the newer view.
func (h *ViewHandler) writeSnapshot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, controller(r).Snapshot())
}

func (h *ViewHandler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := session.FromContext(r.Context()); sess != nil && !sess.Allow() {
			h.logger.WarnContext(r.Context(), "session rate limit exceeded", slog.String("path", r.URL.Path))
			httputil.WriteError(w, r, apperrors.RateLimited("too many requests"), h.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func controller(r *http.Request) *catalog.Controller {
	return session.FromContext(r.Context()).Catalog
}
