package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/myreviews/storefront/pkg/logger"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "storefront_session"

type contextKey struct{}

// FromContext returns the session attached by Manager.Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// NewContext attaches sess to ctx.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// Manager binds browser requests to sessions through a signed cookie.
type Manager struct {
	store  *Store
	signer *Signer
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewManager creates a manager. secure marks the cookie Secure, which
// browsers only honour over HTTPS.
func NewManager(store *Store, signer *Signer, ttl time.Duration, secure bool, logger *slog.Logger) *Manager {
	return &Manager{store: store, signer: signer, ttl: ttl, secure: secure, logger: logger}
}

// Middleware resolves the request's session, creating one when the cookie is
// missing, tampered with, expired or refers to an evicted session. The cookie
// is refreshed on every request so the session slides with activity.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.resolve(r)
		if sess == nil {
			sess = m.store.Create()
			m.logger.DebugContext(r.Context(), "session created", slog.String("session_id", sess.ID))
		}

		if err := m.writeCookie(w, sess.ID); err != nil {
			m.logger.ErrorContext(r.Context(), "failed to issue session cookie", slog.String("error", err.Error()))
		}

		ctx := NewContext(r.Context(), sess)
		ctx = logger.WithSessionID(ctx, sess.ID)
		if u := sess.User(); u != nil {
			ctx = logger.WithUserID(ctx, u.ID)
		}
		ctx = logger.NewContext(ctx, logger.WithContext(ctx, m.logger))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) resolve(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	id, err := m.signer.Parse(c.Value)
	if err != nil {
		m.logger.DebugContext(r.Context(), "session cookie rejected", slog.String("error", err.Error()))
		return nil
	}
	sess, ok := m.store.Get(id)
	if !ok {
		return nil
	}
	return sess
}

// Destroy ends the request's session and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if sess := FromContext(r.Context()); sess != nil {
		m.store.Delete(sess.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) writeCookie(w http.ResponseWriter, id string) error {
	token, err := m.signer.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
