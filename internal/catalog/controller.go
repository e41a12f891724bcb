package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/myreviews/storefront/internal/domain"
	"github.com/myreviews/storefront/internal/productapi"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/logger"
	"github.com/myreviews/storefront/pkg/pagination"
	"github.com/myreviews/storefront/pkg/tracing"
)

const (
	DefaultPageSize     = 16
	DefaultFetchTimeout = 10 * time.Second
	DefaultAuthorName   = "Tú"
	DefaultUserID       = "1"

	defaultRejectMessage = "No se pudo enviar el comentario"
)

var (
	// ErrStaleFetch is returned by a fetch whose response was discarded
	// because a newer fetch was issued meanwhile.
	ErrStaleFetch = errors.New("catalog fetch superseded by a newer one")

	ErrEmptyDraft    = apperrors.InvalidInput("El comentario no puede estar vacío")
	ErrNoOpenProduct = apperrors.InvalidInput("No hay ningún producto abierto")
)

var tracer = tracing.Tracer("github.com/myreviews/storefront/internal/catalog")

// ProductLister fetches one page of raw product records.
type ProductLister interface {
	ListProducts(ctx context.Context, req productapi.ListRequest) (*productapi.ListResult, error)
}

// CommentPoster submits a comment for a product.
type CommentPoster interface {
	CreateComment(ctx context.Context, req productapi.CommentRequest) (*productapi.CommentResult, error)
}

// Options tune a Controller. Zero values fall back to the defaults.
type Options struct {
	PageSize     int
	FetchTimeout time.Duration
	AuthorName   string
	UserID       string
	Rand         *rand.Rand
	Now          func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.AuthorName == "" {
		o.AuthorName = DefaultAuthorName
	}
	if o.UserID == "" {
		o.UserID = DefaultUserID
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller drives the catalog view of one session: fetching, filtering,
// pagination, selection toggles, the product modal and comments.
type Controller struct {
	lister ProductLister
	poster CommentPoster
	logger *slog.Logger
	opts   Options

	mu     sync.Mutex
	state  ViewState
	userID string
	seq    uint64
	cancel context.CancelFunc

	rngMu sync.Mutex
}

// NewController creates a controller with an empty view on page 1. Nothing
// is fetched until Load, Fetch or a page/filter change.
func NewController(lister ProductLister, poster CommentPoster, log *slog.Logger, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		lister: lister,
		poster: poster,
		logger: log,
		opts:   opts,
		state:  newViewState(),
		userID: opts.UserID,
	}
}

// PageSize returns the fixed number of products per page.
func (c *Controller) PageSize() int {
	return c.opts.PageSize
}

// Fetch loads the current page and filter. A failed fetch empties the view
// and is returned for logging only. If a newer fetch starts before this one
// completes, this one is cancelled, its result dropped and ErrStaleFetch
// returned.
func (c *Controller) Fetch(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	c.cancel = cancel
	page, filter := c.state.Page, c.state.Filter
	c.state.Phase = PhaseLoading
	c.mu.Unlock()
	defer cancel()

	fetchCtx, span := tracer.Start(fetchCtx, "catalog.Fetch", trace.WithAttributes(
		attribute.Int("catalog.page", page),
		attribute.String("catalog.filter", filter),
		attribute.Int64("catalog.seq", int64(seq)),
	))
	defer span.End()

	start := time.Now()
	products, total, err := c.load(fetchCtx, page, filter)
	fetchDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		fetchesTotal.WithLabelValues(outcomeStale).Inc()
		span.SetAttributes(attribute.Bool("catalog.stale", true))
		return ErrStaleFetch
	}
	c.cancel = nil
	c.state.Phase = PhaseIdle
	c.state.Fetched = true

	if err != nil {
		fetchesTotal.WithLabelValues(outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithContext(ctx, c.logger).Warn("catalog fetch failed",
			slog.Int("page", page),
			slog.String("filter", filter),
			slog.Uint64("seq", seq),
			slog.String("error", err.Error()),
		)
		c.state.Products = nil
		c.state.Total = 0
		c.state.LastOutcome = OutcomeError
		return err
	}

	fetchesTotal.WithLabelValues(outcomeSuccess).Inc()
	span.SetAttributes(attribute.Int("catalog.products", len(products)), attribute.Int("catalog.total", total))
	c.state.Products = products
	c.state.Total = total
	c.state.LastOutcome = OutcomeSuccess
	return nil
}

// load calls the product API and normalizes the page. It runs without the
// controller lock held.
func (c *Controller) load(ctx context.Context, page int, filter string) ([]domain.DisplayProduct, int, error) {
	res, err := c.lister.ListProducts(ctx, productapi.ListRequest{
		Page:   page,
		Length: c.opts.PageSize,
		Search: filter,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list products page %d: %w", page, err)
	}

	records := res.Products
	if len(records) > c.opts.PageSize {
		records = records[:c.opts.PageSize]
	}

	products := make([]domain.DisplayProduct, 0, len(records))
	c.rngMu.Lock()
	for _, rec := range records {
		p, imgErr := normalize(rec, c.opts.Rand)
		if imgErr != nil {
			imageDecodeFailures.Inc()
			logger.WithContext(ctx, c.logger).Debug("product image dropped",
				slog.String("product_id", p.ID),
				slog.String("error", imgErr.Error()),
			)
		}
		products = append(products, p)
	}
	c.rngMu.Unlock()

	total := res.Total
	if !res.HasTotal {
		total = (page-1)*c.opts.PageSize + len(products)
	}
	return products, total, nil
}

// Load moves the view to page and filter and fetches it. page values below
// 1 mean the first page. A page past the reported total is clamped to the
// last page, which is then fetched.
func (c *Controller) Load(ctx context.Context, page int, filter string) error {
	c.mu.Lock()
	c.state.Page = max(page, 1)
	c.state.Filter = filter
	c.mu.Unlock()

	if err := c.Fetch(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	last := pagination.TotalPages(c.state.Total, c.opts.PageSize)
	if c.state.Page <= last {
		c.mu.Unlock()
		return nil
	}
	c.state.Page = last
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// Sync fetches page and filter unless the view already shows them.
func (c *Controller) Sync(ctx context.Context, page int, filter string) error {
	page = max(page, 1)
	c.mu.Lock()
	current := c.state.Fetched && c.state.Page == page && c.state.Filter == filter
	c.mu.Unlock()
	if current {
		return nil
	}
	return c.Load(ctx, page, filter)
}

// SetPage clamps page into the known page range and fetches it if it differs
// from the current page.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	c.mu.Lock()
	page = pagination.Clamp(page, pagination.TotalPages(c.state.Total, c.opts.PageSize))
	if page == c.state.Page {
		c.mu.Unlock()
		return nil
	}
	c.state.Page = page
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// Next moves one page forward, stopping at the last page.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	page := c.state.Page + 1
	c.mu.Unlock()
	return c.SetPage(ctx, page)
}

// Prev moves one page back, stopping at the first page.
func (c *Controller) Prev(ctx context.Context) error {
	c.mu.Lock()
	page := c.state.Page - 1
	c.mu.Unlock()
	return c.SetPage(ctx, page)
}

// SetFilter replaces the search text, returns to page 1 and fetches.
// An unchanged filter is a no-op.
func (c *Controller) SetFilter(ctx context.Context, filter string) error {
	c.mu.Lock()
	if filter == c.state.Filter && c.state.Fetched {
		c.mu.Unlock()
		return nil
	}
	c.state.Filter = filter
	c.state.Page = 1
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// ToggleFavorite flips id in the favorites set and reports whether it is
// now a favorite.
func (c *Controller) ToggleFavorite(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return toggle(c.state.Favorites, id)
}

// ToggleCart flips id in the cart and reports whether it is now in the cart.
func (c *Controller) ToggleCart(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return toggle(c.state.Cart, id)
}

// OpenProduct opens the modal for a product of the current page, replacing
// any open product along with its comments and draft.
func (c *Controller) OpenProduct(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.state.findProduct(id)
	if !ok {
		return apperrors.NotFound("product", id)
	}
	c.state.open(p)
	return nil
}

// CloseProduct closes the modal and discards its comments and draft.
func (c *Controller) CloseProduct() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.close()
}

// SetDraft replaces the comment draft of the open product.
func (c *Controller) SetDraft(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Open == nil {
		return ErrNoOpenProduct
	}
	c.state.Draft = content
	return nil
}

// SetUserID sets the user comments are posted as. An empty id restores the
// default.
func (c *Controller) SetUserID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" {
		id = c.opts.UserID
	}
	c.userID = id
}

// SubmitComment posts the draft for the open product. On success the comment
// is appended to the session list, provided the same product is still open,
// and the draft is cleared. On failure the draft is kept.
func (c *Controller) SubmitComment(ctx context.Context) (*domain.Comment, error) {
	c.mu.Lock()
	if c.state.Open == nil {
		c.mu.Unlock()
		return nil, ErrNoOpenProduct
	}
	content := c.state.Draft
	if strings.TrimSpace(content) == "" {
		c.mu.Unlock()
		return nil, ErrEmptyDraft
	}
	productID := c.state.Open.ID
	userID := c.userID
	c.mu.Unlock()

	res, err := c.poster.CreateComment(ctx, productapi.CommentRequest{
		ProductID: productID,
		UserID:    userID,
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("submit comment for product %s: %w", productID, err)
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = defaultRejectMessage
		}
		return nil, apperrors.Rejected(msg)
	}

	now := c.opts.Now()
	comment := domain.Comment{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		ProductID: productID,
		UserID:    userID,
		Author:    c.opts.AuthorName,
		Content:   content,
		CreatedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Open != nil && c.state.Open.ID == productID {
		c.state.Comments = append(c.state.Comments, comment)
		c.state.Draft = ""
	}
	return &comment, nil
}
