// Package domain provides the core domain models for product searches.
package domain

// Availability describes the stock state of a scraped product.
type Availability string

// Availability values.
const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityLimited    Availability = "limited"
	AvailabilityUnknown    Availability = "unknown"
)

// ScrapedProduct is a single product listing returned by a vendor scraper.
// Its identity within a search is (VendorID, VendorURL).
type ScrapedProduct struct {
	Name               string       `json:"name"`
	Price              float64      `json:"price"`
	Currency           string       `json:"currency"`
	VendorID           string       `json:"vendor_id"`
	VendorName         string       `json:"vendor_name,omitempty"`
	VendorURL          string       `json:"url"`
	ImageURL           string       `json:"image_url,omitempty"`
	Availability       Availability `json:"availability"`
	Brand              string       `json:"brand,omitempty"`
	Model              string       `json:"model,omitempty"`
	OriginalPrice      *float64     `json:"original_price,omitempty"`
	DiscountPercentage *float64     `json:"discount_percentage,omitempty"`
	DeliveryCost       *float64     `json:"delivery_cost,omitempty"`
	DeliveryTime       string       `json:"delivery_time,omitempty"`
}

// Key returns the canonical identity of the product within a search.
func (p ScrapedProduct) Key() string {
	return p.VendorID + "|" + p.VendorURL
}
