package scraper

import (
	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// NewMax builds the adapter for max.com.gt. The storefront mixes Spanish
// and English class names, so both appear in the chains.
func NewMax(vendorID string, cfg config.VendorConfig, log logger.Logger, opts ...fetch.Option) Scraper {
	return newHTMLScraper(vendorID, cfg, selectorSet{
		searchPath: "/buscar?q=%s",
		containers: []string{
			"div.product, div.producto, div.item-product",
			"article.product-item",
			"div[data-product]",
		},
		name: []string{
			"h3", "h2", "h4",
			"a.product-name",
			"span.nombre",
		},
		price: []string{
			"span.precio",
			"div.precio",
			"span.price",
			"p.precio-actual",
		},
		originalPrice: []string{
			"span.precio-original, div.precio-original",
			"span.precio-antes, div.precio-antes",
			"span.was-price, div.was-price",
		},
		availability: []string{
			"span.disponibilidad, div.disponibilidad",
			"span.stock, div.stock",
			"span.inventario, div.inventario",
		},
		delivery: []string{
			"span.envio, div.envio",
			"span.delivery, div.delivery",
			"span.entrega, div.entrega",
		},
	}, log, opts...)
}
