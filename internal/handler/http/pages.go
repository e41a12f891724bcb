package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/myreviews/storefront/internal/auth"
	"github.com/myreviews/storefront/internal/domain"
	"github.com/myreviews/storefront/internal/session"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/logger"
	"github.com/myreviews/storefront/pkg/pagination"
	"github.com/myreviews/storefront/pkg/validator"
)

const (
	msgBadCredentials   = "Usuario o contraseña incorrectos."
	msgLoginFailed      = "No se pudo iniciar sesión. Inténtalo más tarde."
	msgPasswordMismatch = "Las contraseñas no coinciden."
	msgSignupFailed     = "Hubo un problema al registrar el usuario."
	msgProductNotFound  = "El producto ya no está en esta página."
	msgTooManyRequests  = "Demasiadas solicitudes. Espera un momento."
)

// Authenticator logs users in and registers them against the auth API.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
}

// PageHandler serves the server-rendered login, signup and catalog pages.
type PageHandler struct {
	auth     Authenticator
	sessions *session.Manager
	views    *renderer
	logger   *slog.Logger
}

// NewPageHandler creates the HTML page handler.
func NewPageHandler(authn Authenticator, sessions *session.Manager, logger *slog.Logger) (*PageHandler, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &PageHandler{auth: authn, sessions: sessions, views: views, logger: logger}, nil
}

// RegisterRoutes mounts the pages. The router must already run the session
// middleware.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Get("/signup", h.SignupPage)
	r.Post("/signup", h.Signup)
	r.Post("/logout", h.Logout)

	r.Get("/catalog", h.Catalog)
	r.Group(func(r chi.Router) {
		r.Use(h.limitForms)
		r.Post("/catalog/favorites/{id}", h.ToggleFavorite)
		r.Post("/catalog/cart/{id}", h.ToggleCart)
		r.Post("/catalog/close", h.CloseProduct)
		r.Post("/catalog/comments", h.SubmitComment)
	})
}

// --- Auth pages ---

// LoginPage renders the login form.
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{})
}

// Login checks the form, authenticates against the API and binds the user
// to the session.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := auth.LoginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := pageData{Values: map[string]string{"email": form.Email}}

	if err := validator.Validate(form); err != nil {
		data.Fields = fieldErrors(err)
		h.render(w, r, http.StatusBadRequest, "login", data)
		return
	}

	user, err := h.auth.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		data.Error = msgLoginFailed
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
			status = http.StatusUnauthorized
			data.Error = msgBadCredentials
		} else {
			logger.FromContext(r.Context()).WarnContext(r.Context(), "login failed", slog.String("error", err.Error()))
		}
		h.render(w, r, status, "login", data)
		return
	}

	session.FromContext(r.Context()).SetUser(user)
	http.Redirect(w, r, "/catalog", http.StatusSeeOther)
}

// SignupPage renders the signup form.
func (h *PageHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", pageData{})
}

// Signup registers an account. Mismatched passwords never reach the API.
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	form := auth.SignupForm{
		Name:            strings.TrimSpace(r.PostFormValue("name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	data := pageData{Values: map[string]string{"name": form.Name, "email": form.Email}}

	if err := validator.Validate(form); err != nil {
		data.Fields = fieldErrors(err)
		if _, mismatch := data.Fields["confirmPassword"]; mismatch && form.ConfirmPassword != "" {
			data.Error = msgPasswordMismatch
		}
		h.render(w, r, http.StatusBadRequest, "signup", data)
		return
	}

	user, err := h.auth.Register(r.Context(), form.Name, form.Email, form.Password)
	if err != nil {
		data.Error = msgSignupFailed
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
			data.Error = appErr.Message
		} else {
			logger.FromContext(r.Context()).WarnContext(r.Context(), "signup failed", slog.String("error", err.Error()))
		}
		h.render(w, r, apperrors.HTTPStatus(err), "signup", data)
		return
	}

	h.render(w, r, http.StatusCreated, "login", pageData{
		Notice: fmt.Sprintf("Usuario %s registrado con éxito.", user.DisplayName()),
		Values: map[string]string{"email": user.Email},
	})
}

// Logout ends the session.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// --- Catalog page ---

// Catalog renders the catalog for ?page= and ?q=, fetching only when they
// differ from what the session already shows. ?open= opens a product.
func (h *PageHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	c := session.FromContext(r.Context()).Catalog
	query := r.URL.Query()

	// Fetch failures are logged by the controller and shown as an empty grid.
	_ = c.Sync(r.Context(), pagination.PageFromRequest(r, 1), strings.TrimSpace(query.Get("q")))

	data := pageData{}
	if id := query.Get("open"); id != "" {
		if err := c.OpenProduct(id); err != nil {
			data.Error = msgProductNotFound
		}
	}
	h.renderCatalog(w, r, http.StatusOK, data)
}

// ToggleFavorite flips a product in the session favorites.
func (h *PageHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Catalog.ToggleFavorite(chi.URLParam(r, "id"))
	h.redirectBack(w, r)
}

// ToggleCart flips a product in the session cart.
func (h *PageHandler) ToggleCart(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Catalog.ToggleCart(chi.URLParam(r, "id"))
	h.redirectBack(w, r)
}

// CloseProduct closes the product modal.
func (h *PageHandler) CloseProduct(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Catalog.CloseProduct()
	h.redirectBack(w, r)
}

// SubmitComment posts the form content as a comment on the open product.
// Failures re-render the page with the draft kept.
func (h *PageHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	c := session.FromContext(r.Context()).Catalog

	if err := c.SetDraft(r.PostFormValue("content")); err != nil {
		h.redirectBack(w, r)
		return
	}
	if _, err := c.SubmitComment(r.Context()); err != nil {
		h.renderCatalog(w, r, apperrors.HTTPStatus(err), pageData{Error: userMessage(err)})
		return
	}
	h.redirectBack(w, r)
}

func (h *PageHandler) renderCatalog(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Catalog = session.FromContext(r.Context()).Catalog.Snapshot()
	data.ScrollLocked = data.Catalog.ScrollLocked
	h.render(w, r, status, "catalog", data)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if sess := session.FromContext(r.Context()); sess != nil && data.User == nil {
		data.User = sess.User()
	}
	if err := h.views.render(w, status, name, data); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// redirectBack returns to the catalog URL posted in "return", keeping the
// browser on the same page and filter.
func (h *PageHandler) redirectBack(w http.ResponseWriter, r *http.Request) {
	target := r.PostFormValue("return")
	if !strings.HasPrefix(target, "/catalog") {
		target = "/catalog"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *PageHandler) limitForms(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := session.FromContext(r.Context()); sess != nil && !sess.Allow() {
			h.renderCatalog(w, r, http.StatusTooManyRequests, pageData{Error: msgTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fieldErrors(err error) map[string]string {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Fields()
	}
	return map[string]string{}
}

// userMessage picks the text shown for a failed interaction. Server messages
// of rejected comments are shown verbatim.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return appErr.Message
	}
	return "No se pudo completar la acción. Inténtalo más tarde."
}
