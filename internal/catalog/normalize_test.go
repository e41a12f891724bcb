package catalog

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myreviews/storefront/internal/domain"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNormalize_ResolvesID(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ProductRecord
		want string
	}{
		{"product key number", domain.ProductRecord{"ProductKey": json.Number("310"), "id": "x"}, "310"},
		{"float without fraction", domain.ProductRecord{"ProductID": float64(7)}, "7"},
		{"camel case", domain.ProductRecord{"productId": "BK-42"}, "BK-42"},
		{"lower id", domain.ProductRecord{"id": json.Number("12")}, "12"},
		{"upper id", domain.ProductRecord{"ID": "abc"}, "abc"},
		{"missing", domain.ProductRecord{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.rec, testRand()).ID)
		})
	}
}

func TestNormalize_NameAndDescriptionFallbacks(t *testing.T) {
	p := Normalize(domain.ProductRecord{
		"EnglishProductName": "  ",
		"ProductName":        "",
		"SpanishProductName": "Bicicleta",
		"FrenchDescription":  "Vélo de route",
	}, testRand())

	assert.Equal(t, "Bicicleta", p.Name)
	assert.Equal(t, "Vélo de route", p.Description)

	p = Normalize(domain.ProductRecord{"ProductAlternateKey": "BK-R93R-62"}, testRand())
	assert.Equal(t, "BK-R93R-62", p.Name)
	assert.Empty(t, p.Description)
}

func TestNormalize_PriceResolutionOrder(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ProductRecord
		want string
	}{
		{"list price first", domain.ProductRecord{"ListPrice": json.Number("9.99"), "DealerPrice": json.Number("5")}, "9.99"},
		{"zero list price skipped", domain.ProductRecord{"ListPrice": json.Number("0"), "DealerPrice": json.Number("5.5")}, "5.5"},
		{"standard cost", domain.ProductRecord{"StandardCost": float64(3.25)}, "3.25"},
		{"numeric string", domain.ProductRecord{"Price": "12.50"}, "12.5"},
		{"lower price", domain.ProductRecord{"price": json.Number("1")}, "1"},
		{"non numeric ignored", domain.ProductRecord{"ListPrice": "n/a", "price": json.Number("2")}, "2"},
		{"default zero", domain.ProductRecord{}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.rec, testRand())
			assert.True(t, decimal.RequireFromString(tt.want).Equal(p.Price), "got %s", p.Price)
		})
	}
}

func TestNormalize_Attributes(t *testing.T) {
	p := Normalize(domain.ProductRecord{
		"Color":  "Red",
		"Size":   json.Number("58"),
		"Weight": json.Number("8.95"),
		"Status": nil,
	}, testRand())

	assert.Equal(t, "Red", p.Color)
	assert.Equal(t, "58", p.Size)
	assert.Equal(t, "8.95", p.Weight)
	assert.Empty(t, p.Status)
}

func TestNormalize_RatingAndReviewsRange(t *testing.T) {
	rng := testRand()
	for range 500 {
		p := Normalize(domain.ProductRecord{}, rng)
		assert.GreaterOrEqual(t, p.Rating, 3.0)
		assert.LessOrEqual(t, p.Rating, 5.0)
		assert.InDelta(t, p.Rating, math.Round(p.Rating*10)/10, 1e-9)
		assert.GreaterOrEqual(t, p.Reviews, 0)
		assert.Less(t, p.Reviews, 500)
	}
}

func TestNormalize_ImageAbsentOrCorrupt(t *testing.T) {
	missing, err := normalize(domain.ProductRecord{"ProductKey": json.Number("1")}, testRand())
	require.NoError(t, err)
	assert.False(t, missing.HasImage())

	corrupt, err := normalize(domain.ProductRecord{"ProductKey": json.Number("2"), "LargePhoto": "%%%"}, testRand())
	assert.Error(t, err)
	assert.False(t, corrupt.HasImage())
	assert.Equal(t, "2", corrupt.ID)
}

func TestNormalize_ImageFieldOrder(t *testing.T) {
	p := Normalize(domain.ProductRecord{
		"LargePhoto": nil,
		"Image":      map[string]any{"type": "Buffer", "data": asJSONArray(pngHeader)},
	}, testRand())

	assert.True(t, p.HasImage())
	assert.Contains(t, p.Image, "data:image/png;base64,")
}
