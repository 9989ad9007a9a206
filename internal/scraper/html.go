package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// selectorSet drives extraction for one HTML storefront. Each selector
// list is a fallback chain tried in order; storefront markup changes
// often enough that a single selector per field does not survive long.
type selectorSet struct {
	// searchPath is the search URL path with a %s verb for the escaped
	// query.
	searchPath string
	// containers locate one product card each.
	containers []string
	name       []string
	price      []string
	// originalPrice locates the pre-sale price on discounted listings.
	originalPrice []string
	availability  []string
	delivery      []string
}

// htmlScraper is the shared engine behind the HTML storefront adapters.
// A vendor adapter is this engine plus its selectorSet.
type htmlScraper struct {
	id        string
	name      string
	baseURL   string
	selectors selectorSet
	client    *fetch.Client
	log       logger.Logger
}

func newHTMLScraper(vendorID string, cfg config.VendorConfig, sel selectorSet, log logger.Logger, opts ...fetch.Option) *htmlScraper {
	return &htmlScraper{
		id:        vendorID,
		name:      cfg.Name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		selectors: sel,
		client: fetch.NewClient(vendorID, fetch.Config{
			BaseDelay:  cfg.BaseDelay,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}, log, opts...),
		log: log,
	}
}

func (h *htmlScraper) VendorID() string   { return h.id }
func (h *htmlScraper) VendorName() string { return h.name }

// Search fetches the vendor's search results page and extracts product
// cards. A page with no recognizable product containers is a parse
// failure: either the markup changed or the store served a block page.
func (h *htmlScraper) Search(ctx context.Context, query string, maxResults int) ([]domain.ScrapedProduct, error) {
	searchURL := h.baseURL + fmt.Sprintf(h.selectors.searchPath, url.QueryEscape(query))

	body, err := h.client.Fetch(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing search page: %v", ErrParse, err)
	}

	containers := firstMatch(doc.Selection, h.selectors.containers)
	if containers == nil {
		return nil, fmt.Errorf("%w: no product containers on %s", ErrParse, searchURL)
	}

	products := make([]domain.ScrapedProduct, 0, containers.Length())
	containers.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if p, ok := h.parseCard(card); ok {
			products = append(products, p)
		}
		return len(products) < maxResults
	})

	h.log.Debug("storefront search finished",
		logger.String("vendor", h.id),
		logger.Int("containers", containers.Length()),
		logger.Int("parsed", len(products)))
	return products, nil
}

// parseCard extracts one listing from a product card. Cards missing a
// name, price, or link are skipped rather than failing the page.
func (h *htmlScraper) parseCard(card *goquery.Selection) (domain.ScrapedProduct, bool) {
	name := CleanText(selectText(card, h.selectors.name))
	if name == "" {
		return domain.ScrapedProduct{}, false
	}

	price, ok := ExtractPrice(selectText(card, h.selectors.price))
	if !ok {
		return domain.ScrapedProduct{}, false
	}

	href, exists := card.Find("a[href]").First().Attr("href")
	if !exists || href == "" {
		return domain.ScrapedProduct{}, false
	}

	brand, model := ExtractBrandModel(name)

	p := domain.ScrapedProduct{
		Name:         name,
		Price:        price,
		Currency:     "GTQ",
		VendorURL:    h.resolve(href),
		ImageURL:     h.imageURL(card),
		Availability: parseAvailability(selectText(card, h.selectors.availability)),
		Brand:        brand,
		Model:        model,
		DeliveryTime: parseDelivery(selectText(card, h.selectors.delivery)),
	}

	if orig, ok := ExtractPrice(selectText(card, h.selectors.originalPrice)); ok && orig > price {
		p.OriginalPrice = &orig
		p.DiscountPercentage = discountPercent(orig, price)
	}
	return p, true
}

func (h *htmlScraper) imageURL(card *goquery.Selection) string {
	img := card.Find("img").First()
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-lazy"} {
		if v, ok := img.Attr(attr); ok && v != "" {
			return h.resolve(v)
		}
	}
	return ""
}

// resolve turns a relative href into an absolute URL on the vendor's
// site.
func (h *htmlScraper) resolve(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	base, err := url.Parse(h.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

// firstMatch returns the first selector in the chain that matches
// anything, or nil when none do.
func firstMatch(root *goquery.Selection, chain []string) *goquery.Selection {
	for _, sel := range chain {
		if s := root.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// selectText returns the text of the first selector in the chain that
// matches.
func selectText(root *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		if s := root.Find(sel).First(); s.Length() > 0 {
			return s.Text()
		}
	}
	return ""
}

// parseAvailability maps the Spanish stock phrasing Guatemalan stores
// use to an availability value.
func parseAvailability(text string) domain.Availability {
	text = strings.ToLower(text)
	switch {
	case text == "":
		return domain.AvailabilityUnknown
	case strings.Contains(text, "disponible") && !strings.Contains(text, "no disponible"),
		strings.Contains(text, "en stock"),
		strings.Contains(text, "en existencia"):
		return domain.AvailabilityInStock
	case strings.Contains(text, "agotado"),
		strings.Contains(text, "no disponible"),
		strings.Contains(text, "sin inventario"),
		strings.Contains(text, "sin stock"):
		return domain.AvailabilityOutOfStock
	case strings.Contains(text, "limitado"),
		strings.Contains(text, "pocas unidades"),
		strings.Contains(text, "últimas"):
		return domain.AvailabilityLimited
	}
	return domain.AvailabilityUnknown
}

// parseDelivery normalizes shipping text, keeping only phrases that
// carry information.
func parseDelivery(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "gratis"):
		return "Envío gratis"
	case strings.Contains(lower, "día"),
		strings.Contains(lower, "hora"),
		strings.Contains(lower, "entrega"):
		return CleanText(text)
	}
	return ""
}
