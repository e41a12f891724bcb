package catalog

import (
	"slices"

	"github.com/myreviews/storefront/internal/domain"
)

// Phase is the fetch state of the view.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
)

// Outcome is the result of the most recent completed fetch.
type Outcome string

const (
	OutcomeNone    Outcome = "none"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// ViewState is everything one browser session sees in the catalog. It is
// owned by a Controller and only mutated under its lock.
type ViewState struct {
	Page        int
	Filter      string
	Products    []domain.DisplayProduct
	Total       int
	Phase       Phase
	LastOutcome Outcome
	Fetched     bool

	Favorites map[string]struct{}
	Cart      map[string]struct{}

	Open         *domain.DisplayProduct
	ScrollLocked bool
	Draft        string
	Comments     []domain.Comment
}

func newViewState() ViewState {
	return ViewState{
		Page:        1,
		Phase:       PhaseIdle,
		LastOutcome: OutcomeNone,
		Favorites:   make(map[string]struct{}),
		Cart:        make(map[string]struct{}),
	}
}

// Loading reports whether a fetch is in flight.
func (s *ViewState) Loading() bool {
	return s.Phase == PhaseLoading
}

// toggle flips id's membership in set and returns the new membership.
func toggle(set map[string]struct{}, id string) bool {
	if _, ok := set[id]; ok {
		delete(set, id)
		return false
	}
	set[id] = struct{}{}
	return true
}

func (s *ViewState) findProduct(id string) (domain.DisplayProduct, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.DisplayProduct{}, false
}

func (s *ViewState) open(p domain.DisplayProduct) {
	s.Open = &p
	s.ScrollLocked = true
	s.Comments = nil
	s.Draft = ""
}

func (s *ViewState) close() {
	s.Open = nil
	s.ScrollLocked = false
	s.Comments = nil
	s.Draft = ""
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
