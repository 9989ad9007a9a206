package search

import "github.com/jonesrussell/pricescout/internal/domain"

// ComputePriceStats aggregates price statistics over the collected
// products. Returns nil when there are no products: an empty search has
// no statistics, not zero-valued ones.
func ComputePriceStats(products []domain.ScrapedProduct) *domain.PriceStats {
	if len(products) == 0 {
		return nil
	}

	lowest := products[0].Price
	highest := products[0].Price
	sum := 0.0
	for _, p := range products {
		if p.Price < lowest {
			lowest = p.Price
		}
		if p.Price > highest {
			highest = p.Price
		}
		sum += p.Price
	}

	return &domain.PriceStats{
		Lowest:  lowest,
		Highest: highest,
		Average: sum / float64(len(products)),
		Range:   highest - lowest,
	}
}
