package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

// viewRouter mimics the view API mount: routes live under /api/v1/view.
func viewRouter(status int) http.Handler {
	write := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) }

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Route("/api/v1/view", func(r chi.Router) {
		r.Get("/catalog", write)
		r.Post("/favorites/{id}", write)
		r.Delete("/modal", write)
	})
	r.Get("/catalog", write)
	return r
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SpanNamedAfterRoutePattern(t *testing.T) {
	tests := []struct {
		method    string
		path      string
		wantName  string
		wantRoute string
	}{
		{http.MethodGet, "/api/v1/view/catalog", "GET /api/v1/view/catalog", "/api/v1/view/catalog"},
		{http.MethodPost, "/api/v1/view/favorites/42", "POST /api/v1/view/favorites/{id}", "/api/v1/view/favorites/{id}"},
		{http.MethodDelete, "/api/v1/view/modal", "DELETE /api/v1/view/modal", "/api/v1/view/modal"},
		{http.MethodGet, "/catalog?page=2&q=bike", "GET /catalog", "/catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			exporter := setupTestTracer(t)

			rec := httptest.NewRecorder()
			viewRouter(http.StatusOK).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantName, spans[0].Name)

			route, ok := spanAttr(spans[0].Attributes, "http.route")
			require.True(t, ok)
			assert.Equal(t, tt.wantRoute, route.AsString())
		})
	}
}

func TestTracing_StatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantError bool
	}{
		{"rate limited", http.StatusTooManyRequests, false},
		{"open product missing", http.StatusNotFound, false},
		{"upstream down", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracer(t)

			rec := httptest.NewRecorder()
			viewRouter(tt.status).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/view/favorites/7", nil))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			code, ok := spanAttr(spans[0].Attributes, semconv.HTTPStatusCodeKey)
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), code.AsInt64())
			if tt.wantError {
				assert.Equal(t, codes.Error, spans[0].Status.Code)
			} else {
				assert.NotEqual(t, codes.Error, spans[0].Status.Code)
			}
		})
	}
}

func TestTracing_ContinuesCallerTrace(t *testing.T) {
	exporter := setupTestTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/view/catalog", nil)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: "token"})
	rec := httptest.NewRecorder()
	viewRouter(http.StatusOK).ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent.SpanID().String())
	assert.True(t, spans[0].Parent.IsRemote())

	tp := rec.Header().Get("traceparent")
	assert.Contains(t, tp, "0af7651916cd43dd8448eb211c80319c")
	assert.Contains(t, tp, spans[0].SpanContext.SpanID().String())
}

func TestTracing_NewTraceWithoutHeader(t *testing.T) {
	exporter := setupTestTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	viewRouter(http.StatusOK).ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Parent.IsValid())
	assert.NotEmpty(t, rec.Header().Get("traceparent"))

	scheme, ok := spanAttr(spans[0].Attributes, semconv.HTTPSchemeKey)
	require.True(t, ok)
	assert.Equal(t, "https", scheme.AsString())
}
