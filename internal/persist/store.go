package persist

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
)

//go:embed schema.sql
var schema string

// PostgresStore writes finished searches to PostgreSQL. Products are
// upserted on (vendor_id, vendor_url) so repeated sightings of the same
// listing refresh price and availability instead of duplicating rows.
type PostgresStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewPostgresStore connects to the database and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, log logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &PostgresStore{db: db, log: log}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveSearch writes the search summary, its products, per-search result
// rows, and vendor outcomes in one transaction.
func (s *PostgresStore) SaveSearch(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertSearch(ctx, tx, snap); err != nil {
		return err
	}
	for i, p := range snap.Products {
		if err := upsertProduct(ctx, tx, p); err != nil {
			return err
		}
		if err := insertResult(ctx, tx, snap.ID, i, p); err != nil {
			return err
		}
	}
	for _, o := range snap.Outcomes {
		if err := insertOutcome(ctx, tx, snap.ID, o); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing search %s: %w", snap.ID, err)
	}
	return nil
}

func insertSearch(ctx context.Context, tx *sqlx.Tx, snap domain.Snapshot) error {
	var lowest, highest, average, priceRange *float64
	if snap.Stats != nil {
		lowest = &snap.Stats.Lowest
		highest = &snap.Stats.Highest
		average = &snap.Stats.Average
		priceRange = &snap.Stats.Range
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO searches (id, query, status, total_results, search_time,
			lowest_price, highest_price, average_price, price_range, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		ON CONFLICT (id) DO NOTHING`,
		snap.ID, snap.Query, snap.Status, snap.TotalResults, snap.SearchTime,
		lowest, highest, average, priceRange, snap.Error)
	if err != nil {
		return fmt.Errorf("inserting search %s: %w", snap.ID, err)
	}
	return nil
}

func upsertProduct(ctx context.Context, tx *sqlx.Tx, p domain.ScrapedProduct) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (vendor_id, vendor_url, name, price, currency,
			availability, brand, model, image_url, original_price,
			discount_percentage, delivery_cost, delivery_time, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), $10, $11, $12, NULLIF($13, ''), now())
		ON CONFLICT (vendor_id, vendor_url) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			availability = EXCLUDED.availability,
			original_price = EXCLUDED.original_price,
			discount_percentage = EXCLUDED.discount_percentage,
			last_seen_at = now()`,
		p.VendorID, p.VendorURL, p.Name, p.Price, p.Currency,
		p.Availability, p.Brand, p.Model, p.ImageURL, p.OriginalPrice,
		p.DiscountPercentage, p.DeliveryCost, p.DeliveryTime)
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.Key(), err)
	}
	return nil
}

func insertResult(ctx context.Context, tx *sqlx.Tx, searchID string, position int, p domain.ScrapedProduct) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO search_results (search_id, vendor_id, vendor_url, position, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (search_id, vendor_id, vendor_url) DO NOTHING`,
		searchID, p.VendorID, p.VendorURL, position, p.Price)
	if err != nil {
		return fmt.Errorf("inserting result for %s: %w", searchID, err)
	}
	return nil
}

func insertOutcome(ctx context.Context, tx *sqlx.Tx, searchID string, o domain.VendorOutcome) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vendor_outcomes (search_id, vendor_id, success, reason,
			message, duration_ms, product_count)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		ON CONFLICT (search_id, vendor_id) DO NOTHING`,
		searchID, o.VendorID, o.Success, o.Reason, o.Message,
		o.Duration.Milliseconds(), o.ProductCount)
	if err != nil {
		return fmt.Errorf("inserting outcome %s/%s: %w", searchID, o.VendorID, err)
	}
	return nil
}
