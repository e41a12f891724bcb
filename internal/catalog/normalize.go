package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/myreviews/storefront/internal/domain"
)

// Candidate fields, in resolution order.
var (
	idFields          = []string{"ProductKey", "ProductID", "productId", "id", "ID"}
	nameFields        = []string{"EnglishProductName", "ProductName", "Name", "name", "SpanishProductName", "FrenchProductName", "ProductAlternateKey"}
	descriptionFields = []string{"EnglishDescription", "Description", "description", "SpanishDescription", "FrenchDescription"}
	priceFields       = []string{"ListPrice", "DealerPrice", "StandardCost", "Price", "price"}
)

const (
	minRating  = 3.0
	maxRating  = 5.0
	maxReviews = 500
)

// Normalize maps a raw record onto a DisplayProduct. An image that cannot be
// decoded is left absent. rng drives the presentation-only rating and
// review count.
func Normalize(rec domain.ProductRecord, rng *rand.Rand) domain.DisplayProduct {
	p, _ := normalize(rec, rng)
	return p
}

// normalize also reports the image decode error, if any, for logging.
func normalize(rec domain.ProductRecord, rng *rand.Rand) (domain.DisplayProduct, error) {
	p := domain.DisplayProduct{
		ID:          resolveID(rec),
		Name:        firstString(rec, nameFields),
		Description: firstString(rec, descriptionFields),
		Price:       resolvePrice(rec),
		Color:       stringify(rec["Color"]),
		Size:        stringify(rec["Size"]),
		Weight:      stringify(rec["Weight"]),
		Status:      stringify(rec["Status"]),
		Rating:      math.Round((minRating+rng.Float64()*(maxRating-minRating))*10) / 10,
		Reviews:     rng.IntN(maxReviews),
	}

	var imgErr error
	for _, field := range imageFields {
		payload, ok := rec[field]
		if !ok || payload == nil {
			continue
		}
		p.Image, imgErr = DecodeImage(payload)
		if imgErr != nil {
			imgErr = fmt.Errorf("%s: %w", field, imgErr)
		}
		break
	}
	return p, imgErr
}

func resolveID(rec domain.ProductRecord) string {
	for _, field := range idFields {
		if id := stringify(rec[field]); id != "" {
			return id
		}
	}
	return ""
}

func firstString(rec domain.ProductRecord, fields []string) string {
	for _, field := range fields {
		if s := strings.TrimSpace(stringify(rec[field])); s != "" {
			return s
		}
	}
	return ""
}

// resolvePrice returns the first non-zero numeric candidate, or zero.
func resolvePrice(rec domain.ProductRecord) decimal.Decimal {
	for _, field := range priceFields {
		if d, ok := toDecimal(rec[field]); ok && !d.IsZero() {
			return d
		}
	}
	return decimal.Zero
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// stringify renders scalar JSON values; whole numbers lose their fraction.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		if i, err := s.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := s.Float64(); err == nil {
			return formatFloat(f)
		}
		return s.String()
	case float64:
		return formatFloat(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
