package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/myreviews/storefront/internal/catalog"
	"github.com/myreviews/storefront/internal/domain"
)

var templateFuncs = template.FuncMap{
	"add":      func(a, b int) int { return a + b },
	"pageURL":  pageURL,
	"imageURL": imageURL,
}

// pageData feeds every HTML page.
type pageData struct {
	User         *domain.User
	Notice       string
	Error        string
	ScrollLocked bool
	Values       map[string]string
	Fields       map[string]string
	Catalog      catalog.Snapshot
}

// pageURL links to a catalog page, keeping the filter.
func pageURL(page int, filter string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if filter != "" {
		q.Set("q", filter)
	}
	return "/catalog?" + q.Encode()
}

// imageURL marks decoded product images as safe for src attributes. Only
// base64 image data URIs qualify.
func imageURL(uri string) template.URL {
	if strings.HasPrefix(uri, "data:image/") && strings.Contains(uri, ";base64,") {
		return template.URL(uri)
	}
	return ""
}

// renderer holds one template set per page, each sharing the layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{"login", "signup", "catalog"} {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (r *renderer) render(w http.ResponseWriter, status int, name string, data pageData) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
