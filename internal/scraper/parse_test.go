package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"quetzal symbol", "Q1,299.00", 1299.00, true},
		{"dollar symbol", "$549.99", 549.99, true},
		{"currency code", "GTQ 2500", 2500, true},
		{"spelled out", "150 quetzales", 150, true},
		{"embedded text", "Precio: Q 89.50 c/u", 89.50, true},
		{"integer", "475", 475, true},
		{"no digits", "Consultar precio", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Samsung Galaxy S24", CleanText("  Samsung\n\tGalaxy   S24  "))
	assert.Equal(t, "Licuadora Oster (1.5 L)", CleanText("Licuadora Oster™ (1.5 L)"))
	assert.Equal(t, "", CleanText("   "))
}

func TestExtractBrandModel(t *testing.T) {
	brand, model := ExtractBrandModel("Samsung Galaxy A54 128GB")
	assert.Equal(t, "Samsung", brand)
	assert.Equal(t, "A54 128GB", model)

	brand, _ = ExtractBrandModel("iPhone 15 Pro Max")
	assert.Equal(t, "Apple", brand)

	brand, model = ExtractBrandModel("Licuadora de vidrio 1.5 litros")
	assert.Empty(t, brand)
	assert.Empty(t, model)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "iPhone 15", NormalizeQuery("  iphone   15 "))
	assert.Equal(t, "Samsung tv 55", NormalizeQuery("samsung tv 55"))
	assert.Equal(t, "licuadora", NormalizeQuery("licuadora"))
}

func TestDiscountPercent(t *testing.T) {
	d := discountPercent(200, 150)
	require.NotNil(t, d)
	assert.InDelta(t, 25.0, *d, 0.001)

	assert.Nil(t, discountPercent(100, 100))
	assert.Nil(t, discountPercent(90, 100))
	assert.Nil(t, discountPercent(0, 0))
}
