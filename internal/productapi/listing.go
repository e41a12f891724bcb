package productapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/myreviews/storefront/internal/cache"
	"github.com/myreviews/storefront/internal/domain"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/httpclient"
)

// ErrMalformedListing is returned when a listing body carries no product list.
var ErrMalformedListing = errors.New("malformed product listing")

// ListRequest asks for one page of products.
type ListRequest struct {
	Page   int
	Length int
	Search string
}

// ListResult is one decoded page. HasTotal is false when the API omitted the
// total item count.
type ListResult struct {
	Products []domain.ProductRecord
	Total    int
	HasTotal bool
}

// ListProducts fetches one page of products. Successful bodies are cached
// when a listing cache is configured; cache failures only cost a round trip.
func (c *Client) ListProducts(ctx context.Context, lr ListRequest) (*ListResult, error) {
	key := cache.ListingKey(lr.Page, lr.Length, lr.Search)
	if body, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "listing cache read failed", slog.String("error", err.Error()))
	} else if ok {
		if res, err := DecodeListing(body); err == nil {
			return res, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(lr), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}

	resp, err := c.do(ctx, "list_products", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Upstream(serviceName, fmt.Errorf("read listing: %w", err))
	}

	res, err := DecodeListing(body)
	if err != nil {
		return nil, apperrors.Upstream(serviceName, err)
	}

	if c.cfg.CacheTTL > 0 {
		if err := c.cache.Set(ctx, key, body, c.cfg.CacheTTL); err != nil {
			c.logger.WarnContext(ctx, "listing cache write failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (c *Client) listURL(lr ListRequest) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(lr.Page))
	q.Set("length", strconv.Itoa(lr.Length))
	q.Set("search", lr.Search)
	return c.cfg.BaseURL + c.cfg.ProductsPath + "?" + q.Encode()
}

// DecodeListing accepts the shapes the product API is known to return:
// {"data":{"products":[...],"total":n}}, {"data":[...]}, {"products":[...],"total":n}
// and a bare array of products.
func DecodeListing(body []byte) (*ListResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedListing)
	}

	if body[0] == '[' {
		products, err := decodeProducts(body)
		if err != nil {
			return nil, err
		}
		return &ListResult{Products: products}, nil
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedListing, err)
	}

	if data, ok := outer["data"]; ok && !isNull(data) {
		res, err := DecodeListing(data)
		if err != nil {
			return nil, err
		}
		// Some deployments report the total next to data rather than inside it.
		if !res.HasTotal {
			res.Total, res.HasTotal = decodeTotal(outer)
		}
		return res, nil
	}

	raw, ok := outer["products"]
	if !ok {
		return nil, fmt.Errorf("%w: no products field", ErrMalformedListing)
	}
	products, err := decodeProducts(raw)
	if err != nil {
		return nil, err
	}

	res := &ListResult{Products: products}
	res.Total, res.HasTotal = decodeTotal(outer)
	return res, nil
}

func decodeProducts(raw json.RawMessage) ([]domain.ProductRecord, error) {
	if isNull(raw) {
		return []domain.ProductRecord{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: products is not a list: %v", ErrMalformedListing, err)
	}

	products := make([]domain.ProductRecord, 0, len(items))
	for _, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var rec domain.ProductRecord
		if err := dec.Decode(&rec); err != nil || rec == nil {
			// A single non-object entry does not invalidate the page.
			continue
		}
		products = append(products, rec)
	}
	return products, nil
}

// maxTotal caps reported totals so absurd values cannot overflow int.
const maxTotal = math.MaxInt32

func decodeTotal(fields map[string]json.RawMessage) (int, bool) {
	for _, name := range []string{"total", "totalCount", "count"} {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				continue
			}
			n = json.Number(s)
		}
		if f, err := n.Float64(); err == nil && f >= 0 {
			return int(min(f, maxTotal)), true
		}
	}
	return 0, false
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
