package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
)

const walmartFixture = `<html><body>
<div data-testid="product-tile">
  <a href="/ip/samsung-galaxy-a54"><img src="/images/a54.jpg"/></a>
  <span data-testid="product-title">Samsung Galaxy A54 128GB</span>
  <span data-testid="price-current">Q2,899.00</span>
  <span data-testid="price-was">Q3,299.00</span>
  <span data-testid="availability">Disponible</span>
  <span class="shipping">Envío gratis</span>
</div>
<div data-testid="product-tile">
  <a href="https://www.walmart.com.gt/ip/telefono-basico"><img data-src="/images/basico.jpg"/></a>
  <span data-testid="product-title">Teléfono básico</span>
  <span data-testid="price-current">Q349.00</span>
  <span data-testid="availability">Agotado</span>
</div>
<div data-testid="product-tile">
  <span data-testid="product-title">Sin precio</span>
</div>
</body></html>`

const walmartLegacyFixture = `<html><body>
<div class="product">
  <a href="/p/tv-lg-55"><img src="/images/tv.jpg"/></a>
  <h4>Pantalla LG 55 pulgadas</h4>
  <span class="price">Q4,500</span>
</div>
</body></html>`

func TestWalmartSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "samsung", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(walmartFixture))
	}))
	defer srv.Close()

	s := NewWalmart("walmart", testVendorConfig(srv.URL), logger.NewNop())
	products, err := s.Search(context.Background(), "samsung", 50)
	require.NoError(t, err)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "Samsung Galaxy A54 128GB", first.Name)
	assert.Equal(t, 2899.0, first.Price)
	assert.Equal(t, srv.URL+"/ip/samsung-galaxy-a54", first.VendorURL)
	assert.Equal(t, srv.URL+"/images/a54.jpg", first.ImageURL)
	assert.Equal(t, domain.AvailabilityInStock, first.Availability)
	assert.Equal(t, "Samsung", first.Brand)
	assert.Equal(t, "Envío gratis", first.DeliveryTime)
	require.NotNil(t, first.OriginalPrice)
	assert.Equal(t, 3299.0, *first.OriginalPrice)

	second := products[1]
	assert.Equal(t, "https://www.walmart.com.gt/ip/telefono-basico", second.VendorURL)
	assert.Equal(t, srv.URL+"/images/basico.jpg", second.ImageURL)
	assert.Equal(t, domain.AvailabilityOutOfStock, second.Availability)
	assert.Nil(t, second.OriginalPrice)
}

func TestWalmartSearchLegacyMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(walmartLegacyFixture))
	}))
	defer srv.Close()

	s := NewWalmart("walmart", testVendorConfig(srv.URL), logger.NewNop())
	products, err := s.Search(context.Background(), "pantalla", 50)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Pantalla LG 55 pulgadas", products[0].Name)
	assert.Equal(t, 4500.0, products[0].Price)
	assert.Equal(t, domain.AvailabilityUnknown, products[0].Availability)
	assert.Equal(t, "LG", products[0].Brand)
}

func TestWalmartSearchNoContainers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Access denied</p></body></html>"))
	}))
	defer srv.Close()

	s := NewWalmart("walmart", testVendorConfig(srv.URL), logger.NewNop())
	_, err := s.Search(context.Background(), "samsung", 50)
	require.Error(t, err)
	assert.Equal(t, domain.ReasonParse, Classify(err))
}

func TestWalmartSearchMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(walmartFixture))
	}))
	defer srv.Close()

	s := NewWalmart("walmart", testVendorConfig(srv.URL), logger.NewNop())
	products, err := s.Search(context.Background(), "samsung", 1)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
