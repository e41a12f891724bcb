package pagination

import (
	"net/http"
	"strconv"
)

// DefaultWindow is the number of page links shown around the current page.
const DefaultWindow = 5

// PageFromRequest reads the 1-based "page" query parameter, returning def
// when it is missing or not a positive integer.
func PageFromRequest(r *http.Request, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		return v
	}
	return def
}

// TotalPages returns ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	pages := total / size
	if total%size > 0 {
		pages++
	}
	return pages
}

// Clamp bounds page into [1, totalPages].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Window returns at most width consecutive page numbers centred on current
// and shifted to stay inside [1, totalPages].
func Window(current, totalPages, width int) []int {
	if totalPages < 1 {
		totalPages = 1
	}
	if width < 1 {
		width = 1
	}
	if width > totalPages {
		width = totalPages
	}
	current = Clamp(current, totalPages)

	start := current - width/2
	if start < 1 {
		start = 1
	}
	if end := start + width - 1; end > totalPages {
		start = totalPages - width + 1
	}

	pages := make([]int, width)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// Result describes one page of a listing.
type Result[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int   `json:"total_count"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	Pages      []int `json:"pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewResult builds a Result for data, which the caller has already bounded to perPage.
func NewResult[T any](data []T, totalCount, page, perPage int) Result[T] {
	totalPages := TotalPages(totalCount, perPage)
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Pages:      Window(page, totalPages, DefaultWindow),
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
