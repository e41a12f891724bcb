package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/myreviews/storefront/internal/catalog"
	"github.com/myreviews/storefront/internal/domain"
)

var activeSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "sessions_active",
		Help:      "Number of live browser sessions",
	},
)

// Session is one browser session: its catalog view, the logged-in user and
// a rate limiter for mutating requests.
type Session struct {
	ID      string
	Catalog *catalog.Controller

	limiter *rate.Limiter

	mu       sync.Mutex
	user     *domain.User
	lastSeen time.Time
}

// User returns the logged-in user, or nil.
func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser records the logged-in user; comments are then posted as that
// user. A nil user logs out.
func (s *Session) SetUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()

	if u == nil {
		s.Catalog.SetUserID("")
		return
	}
	s.Catalog.SetUserID(u.ID)
}

// Allow reports whether a mutating request may proceed under the session's
// rate limit.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

// StoreConfig tunes session lifetime and per-session rate limiting.
type StoreConfig struct {
	TTL            time.Duration
	SweepInterval  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// Store keeps sessions in memory. Sessions idle for longer than the TTL
// are evicted by a background sweeper until Stop is called.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg           StoreConfig
	newController func() *catalog.Controller
	logger        *slog.Logger
	nowFunc       func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts its sweeper. newController builds the
// catalog view of each new session.
func NewStore(cfg StoreConfig, newController func() *catalog.Controller, logger *slog.Logger) *Store {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = min(cfg.TTL, time.Minute)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	s := &Store{
		sessions:      make(map[string]*Session),
		cfg:           cfg,
		newController: newController,
		logger:        logger,
		nowFunc:       time.Now,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Create starts a new session.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Catalog:  s.newController(),
		limiter:  rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), s.cfg.RateLimitBurst),
		lastSeen: s.nowFunc(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	activeSessions.Set(float64(n))
	return sess
}

// Get returns a live session and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.nowFunc()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if now.Sub(sess.lastSeen) > s.cfg.TTL {
		delete(s.sessions, id)
		activeSessions.Set(float64(len(s.sessions)))
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	activeSessions.Set(float64(n))
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop halts the sweeper and waits for it to exit. It is safe to call more
// than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Store) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts sessions not seen within the TTL.
func (s *Store) sweep() {
	s.mu.Lock()
	now := s.nowFunc()
	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen)
		sess.mu.Unlock()
		if idle > s.cfg.TTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	activeSessions.Set(float64(n))
	if evicted > 0 {
		s.logger.Debug("expired sessions evicted", slog.Int("count", evicted), slog.Int("remaining", n))
	}
}
