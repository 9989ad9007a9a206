package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// Cemaco searches cemaco.com through its VTEX catalog API. The store runs
// on VTEX, so product data comes back as structured JSON instead of HTML.
type Cemaco struct {
	id      string
	name    string
	baseURL string
	client  *fetch.Client
	log     logger.Logger
}

// NewCemaco builds the Cemaco adapter.
func NewCemaco(vendorID string, cfg config.VendorConfig, log logger.Logger, opts ...fetch.Option) Scraper {
	return &Cemaco{
		id:      vendorID,
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: fetch.NewClient(vendorID, fetch.Config{
			BaseDelay:  cfg.BaseDelay,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}, log, opts...),
		log: log,
	}
}

func (c *Cemaco) VendorID() string   { return c.id }
func (c *Cemaco) VendorName() string { return c.name }

// vtexProduct mirrors the subset of the VTEX search payload we consume.
type vtexProduct struct {
	ProductName string     `json:"productName"`
	Brand       string     `json:"brand"`
	LinkText    string     `json:"linkText"`
	Items       []vtexItem `json:"items"`
}

type vtexItem struct {
	Images  []vtexImage  `json:"images"`
	Sellers []vtexSeller `json:"sellers"`
}

type vtexImage struct {
	ImageURL string `json:"imageUrl"`
}

type vtexSeller struct {
	CommertialOffer vtexOffer `json:"commertialOffer"`
}

// vtexOffer keeps VTEX's spelling of "commercial".
type vtexOffer struct {
	Price             float64 `json:"Price"`
	ListPrice         float64 `json:"ListPrice"`
	AvailableQuantity int     `json:"AvailableQuantity"`
}

// Search queries the VTEX catalog endpoint and maps each product's first
// SKU and seller into a listing.
func (c *Cemaco) Search(ctx context.Context, query string, maxResults int) ([]domain.ScrapedProduct, error) {
	searchURL := fmt.Sprintf("%s/api/catalog_system/pub/products/search?ft=%s&_from=0&_to=%d",
		c.baseURL, url.QueryEscape(query), maxResults-1)

	body, err := c.client.Fetch(ctx, searchURL, map[string]string{
		"Accept":  "application/json",
		"Referer": c.baseURL + "/",
		"Origin":  c.baseURL,
	})
	if err != nil {
		return nil, err
	}

	var items []vtexProduct
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog response: %v", ErrParse, err)
	}

	products := make([]domain.ScrapedProduct, 0, len(items))
	for _, item := range items {
		if len(products) >= maxResults {
			break
		}
		if p, ok := c.parseProduct(item); ok {
			products = append(products, p)
		}
	}

	c.log.Debug("catalog search finished",
		logger.String("vendor", c.id),
		logger.Int("returned", len(items)),
		logger.Int("parsed", len(products)))
	return products, nil
}

func (c *Cemaco) parseProduct(item vtexProduct) (domain.ScrapedProduct, bool) {
	if item.ProductName == "" || len(item.Items) == 0 {
		return domain.ScrapedProduct{}, false
	}
	sku := item.Items[0]
	if len(sku.Sellers) == 0 {
		return domain.ScrapedProduct{}, false
	}
	offer := sku.Sellers[0].CommertialOffer
	if offer.Price == 0 {
		return domain.ScrapedProduct{}, false
	}

	productURL := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(item.ProductName))
	if item.LinkText != "" {
		productURL = fmt.Sprintf("%s/%s/p", c.baseURL, item.LinkText)
	}

	imageURL := ""
	if len(sku.Images) > 0 {
		imageURL = sku.Images[0].ImageURL
		if imageURL != "" && !strings.HasPrefix(imageURL, "http") {
			imageURL = "https:" + imageURL
		}
	}

	availability := domain.AvailabilityOutOfStock
	if offer.AvailableQuantity > 0 {
		availability = domain.AvailabilityInStock
	}

	brand := item.Brand
	extractedBrand, model := ExtractBrandModel(item.ProductName)
	if brand == "" {
		brand = extractedBrand
	}

	p := domain.ScrapedProduct{
		Name:         item.ProductName,
		Price:        offer.Price,
		Currency:     "GTQ",
		VendorURL:    productURL,
		ImageURL:     imageURL,
		Availability: availability,
		Brand:        brand,
		Model:        model,
	}
	if offer.ListPrice > offer.Price {
		lp := offer.ListPrice
		p.OriginalPrice = &lp
		p.DiscountPercentage = discountPercent(lp, offer.Price)
	}
	return p, true
}
