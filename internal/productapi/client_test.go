package productapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myreviews/storefront/internal/cache"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, c cache.Cache, ttl time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	doer := httpclient.New(httpclient.Config{Timeout: 5 * time.Second, MaxConnsPerHost: 4})
	return NewClient(doer, Config{
		BaseURL:      server.URL + "/",
		ProductsPath: "/api/products",
		CommentsPath: "/api/comments",
		CacheTTL:     ttl,
	}, c, testLogger())
}

func TestListProducts_SendsPagingQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "16", r.URL.Query().Get("length"))
		assert.Equal(t, "mountain bike", r.URL.Query().Get("search"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"data":{"products":[{"ProductKey":1,"ListPrice":9.99}],"total":1}}`))
	}, nil, 0)

	res, err := client.ListProducts(context.Background(), ListRequest{Page: 2, Length: 16, Search: "mountain bike"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, json.Number("1"), res.Products[0]["ProductKey"])
	assert.Equal(t, json.Number("9.99"), res.Products[0]["ListPrice"])
	assert.Equal(t, 1, res.Total)
	assert.True(t, res.HasTotal)
}

func TestListProducts_UpstreamErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"length too large"}`))
	}, nil, 0)

	_, err := client.ListProducts(context.Background(), ListRequest{Page: 1, Length: 16})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListProducts_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}, nil, 0)

	_, err := client.ListProducts(context.Background(), ListRequest{Page: 1, Length: 16})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedListing)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestListProducts_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(httpclient.New(httpclient.DefaultConfig()), Config{BaseURL: url, ProductsPath: "/api/products"}, nil, testLogger())

	_, err := client.ListProducts(context.Background(), ListRequest{Page: 1, Length: 16})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call product-api")
}

func TestListProducts_UsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"products":[{"ProductKey":7}],"total":40}`))
	}, cache.NewRedis(rc), time.Minute)

	for i := 0; i < 3; i++ {
		res, err := client.ListProducts(context.Background(), ListRequest{Page: 3, Length: 16, Search: "x"})
		require.NoError(t, err)
		assert.Equal(t, 40, res.Total)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := client.ListProducts(context.Background(), ListRequest{Page: 4, Length: 16, Search: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Ping(context.Context) error { return errors.New("cache down") }

func TestListProducts_CacheFailureFallsThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"ProductKey":1}]`))
	}, failingCache{}, time.Minute)

	res, err := client.ListProducts(context.Background(), ListRequest{Page: 1, Length: 16})
	require.NoError(t, err)
	assert.Len(t, res.Products, 1)
	assert.False(t, res.HasTotal)
}

func TestCreateComment_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/comments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"productId":310,"userId":1,"content":"Muy buena"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}, nil, 0)

	res, err := client.CreateComment(context.Background(), CommentRequest{ProductID: "310", UserID: "1", Content: "Muy buena"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestCreateComment_NonNumericIDsStayStrings(t *testing.T) {
	body, err := json.Marshal(CommentRequest{ProductID: "BK-M68B-38", UserID: "u-1", Content: "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"BK-M68B-38","userId":"u-1","content":"ok"}`, string(body))
}

func TestCreateComment_SuccessFalse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Comentario duplicado"}`))
	}, nil, 0)

	res, err := client.CreateComment(context.Background(), CommentRequest{ProductID: "1", UserID: "1", Content: "x"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Comentario duplicado", res.Message)
}

func TestCreateComment_ErrorStatusCarriesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"El comentario es demasiado largo"}`))
	}, nil, 0)

	_, err := client.CreateComment(context.Background(), CommentRequest{ProductID: "1", UserID: "1", Content: "x"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "El comentario es demasiado largo", appErr.Message)
}

func TestPing(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("length"))
		_, _ = w.Write([]byte(`[]`))
	}, nil, 0)
	assert.NoError(t, healthy.Ping(context.Background()))

	broken := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil, 0)
	assert.Error(t, broken.Ping(context.Background()))
}
