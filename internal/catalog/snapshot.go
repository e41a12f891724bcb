package catalog

import (
	"slices"

	"github.com/myreviews/storefront/internal/domain"
	"github.com/myreviews/storefront/pkg/pagination"
)

// ProductView is a product as rendered, with the session's selection flags.
type ProductView struct {
	domain.DisplayProduct
	Favorite bool `json:"favorite"`
	InCart   bool `json:"in_cart"`
}

// Snapshot is an immutable copy of a catalog view.
type Snapshot struct {
	Products    []ProductView `json:"products"`
	Page        int           `json:"page"`
	PageSize    int           `json:"page_size"`
	Total       int           `json:"total"`
	TotalPages  int           `json:"total_pages"`
	Pages       []int         `json:"pages"`
	HasPrev     bool          `json:"has_prev"`
	HasNext     bool          `json:"has_next"`
	Filter      string        `json:"filter"`
	Loading     bool          `json:"loading"`
	Phase       Phase         `json:"phase"`
	LastOutcome Outcome       `json:"last_outcome"`
	Empty       bool          `json:"empty"`

	Favorites      []string `json:"favorites"`
	Cart           []string `json:"cart"`
	FavoritesCount int      `json:"favorites_count"`
	CartCount      int      `json:"cart_count"`

	Open         *ProductView     `json:"open,omitempty"`
	ScrollLocked bool             `json:"scroll_locked"`
	Draft        string           `json:"draft"`
	Comments     []domain.Comment `json:"comments"`
}

// Snapshot copies the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.state
	products := make([]ProductView, 0, len(s.Products))
	for _, p := range s.Products {
		products = append(products, c.view(p))
	}
	page := pagination.NewResult(products, s.Total, s.Page, c.opts.PageSize)

	snap := Snapshot{
		Products:       page.Data,
		Page:           page.Page,
		PageSize:       page.PerPage,
		Total:          page.TotalCount,
		TotalPages:     page.TotalPages,
		Pages:          page.Pages,
		HasPrev:        page.HasPrev,
		HasNext:        page.HasNext,
		Filter:         s.Filter,
		Loading:        s.Loading(),
		Phase:          s.Phase,
		LastOutcome:    s.LastOutcome,
		Empty:          !s.Loading() && len(s.Products) == 0,
		Favorites:      sortedKeys(s.Favorites),
		Cart:           sortedKeys(s.Cart),
		FavoritesCount: len(s.Favorites),
		CartCount:      len(s.Cart),
		ScrollLocked:   s.ScrollLocked,
		Draft:          s.Draft,
		Comments:       slices.Clone(s.Comments),
	}
	if snap.Comments == nil {
		snap.Comments = []domain.Comment{}
	}
	if s.Open != nil {
		v := c.view(*s.Open)
		snap.Open = &v
	}
	return snap
}

// view must be called with c.mu held.
func (c *Controller) view(p domain.DisplayProduct) ProductView {
	_, fav := c.state.Favorites[p.ID]
	_, inCart := c.state.Cart[p.ID]
	return ProductView{DisplayProduct: p, Favorite: fav, InCart: inCart}
}
