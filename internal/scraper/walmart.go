package scraper

import (
	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// NewWalmart builds the adapter for walmart.com.gt. Walmart's storefront
// tags its cards with data-testid attributes; the class-based selectors
// cover older page variants.
func NewWalmart(vendorID string, cfg config.VendorConfig, log logger.Logger, opts ...fetch.Option) Scraper {
	return newHTMLScraper(vendorID, cfg, selectorSet{
		searchPath: "/search?q=%s",
		containers: []string{
			"div[data-testid=product-tile]",
			"article.product-tile",
			"div.product, div.item, div.product-item",
		},
		name: []string{
			"span[data-testid=product-title]",
			"h3.product-title",
			"a.product-name",
			"h4", "h3",
		},
		price: []string{
			"span[data-testid=price-current]",
			"span.price-current",
			"div.price-current",
			"span.price",
		},
		originalPrice: []string{
			"span[data-testid=price-was]",
			"span.price-was",
			"span.price-original",
		},
		availability: []string{
			"span[data-testid=availability]",
			"span.availability, div.availability, span.stock, div.stock",
		},
		delivery: []string{
			"span.delivery, div.delivery, span.shipping, div.shipping",
		},
	}, log, opts...)
}
