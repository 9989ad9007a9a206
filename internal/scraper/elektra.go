package scraper

import (
	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// NewElektra builds the adapter for elektra.com.gt.
func NewElektra(vendorID string, cfg config.VendorConfig, log logger.Logger, opts ...fetch.Option) Scraper {
	return newHTMLScraper(vendorID, cfg, selectorSet{
		searchPath: "/search?q=%s",
		containers: []string{
			"div.item, div.product-item, div.producto",
			"article.product",
			"div[data-item-id]",
		},
		name: []string{
			"h3.item-title",
			"h2.product-title",
			"a.item-name",
			"h4", "h3",
		},
		price: []string{
			"span.price-current",
			"div.price-current",
			"span.precio-actual",
			"p.price",
		},
		originalPrice: []string{
			"span.price-was, div.price-was",
			"span.precio-antes, div.precio-antes",
			"span.original-price, div.original-price",
		},
		availability: []string{
			"span.stock-status, div.stock-status",
			"span.disponibilidad, div.disponibilidad",
			"span.inventory, div.inventory",
		},
		delivery: []string{
			"span.shipping, div.shipping",
			"span.envio, div.envio",
			"span.delivery-info, div.delivery-info",
		},
	}, log, opts...)
}
