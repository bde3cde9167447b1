package database

import (
	"database/sql"
	"fmt"
	"time"

	"watch-market-portal/internal/models"

	"github.com/lib/pq"
)

// DB is the raw PostgreSQL backend. It covers the batch ingest contracts;
// the browsing API and collector run on the GORM/MySQL backend.
type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the ingest tables if they don't exist
func (db *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS brand_models (
		id BIGSERIAL PRIMARY KEY,
		brand VARCHAR(50) NOT NULL,
		collection VARCHAR(100),
		model_name VARCHAR(200) NOT NULL,
		ref_code VARCHAR(50),
		msrp DECIMAL(12, 2),
		case_material VARCHAR(100),
		bracelet VARCHAR(100),
		dial VARCHAR(100),
		size_mm DECIMAL(5, 2),
		image_url TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_brand_models_brand ON brand_models(brand);

	CREATE TABLE IF NOT EXISTS market_listings (
		id BIGSERIAL PRIMARY KEY,
		model_id BIGINT NOT NULL,
		source VARCHAR(50) NOT NULL,
		url VARCHAR(500) NOT NULL UNIQUE,
		title TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_market_listings_model_id ON market_listings(model_id);

	CREATE TABLE IF NOT EXISTS listing_snapshots (
		id BIGSERIAL PRIMARY KEY,
		listing_id BIGINT NOT NULL,
		captured_date DATE NOT NULL,
		price_value DECIMAL(12, 2),
		availability_flag BOOLEAN NOT NULL DEFAULT TRUE,
		shipping_days_min INTEGER,
		shipping_days_max INTEGER,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (listing_id, captured_date)
	);
	CREATE INDEX IF NOT EXISTS idx_listing_snapshots_date ON listing_snapshots(captured_date);

	CREATE TABLE IF NOT EXISTS model_daily_stats (
		id BIGSERIAL PRIMARY KEY,
		model_id BIGINT NOT NULL,
		captured_date DATE NOT NULL,
		median_price DECIMAL(12, 2) NOT NULL,
		listings_count INTEGER NOT NULL,
		new_listings_count INTEGER NOT NULL,
		sold_rate_proxy DECIMAL(6, 4) NOT NULL,
		premium_over_msrp DECIMAL(8, 4),
		wait_time_index DECIMAL(6, 4) NOT NULL,
		wait_band VARCHAR(30) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (model_id, captured_date)
	);
	`
	_, err := db.conn.Exec(query)
	return err
}

// ModelsByBrand retrieves all catalog models for a brand, ordered by id
func (db *DB) ModelsByBrand(brand string) ([]models.WatchModel, error) {
	query := `
		SELECT id, brand, collection, model_name, ref_code, msrp
		FROM brand_models
		WHERE brand = $1
		ORDER BY id ASC
	`
	rows, err := db.conn.Query(query, brand)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.WatchModel
	for rows.Next() {
		var m models.WatchModel
		var collection, refCode sql.NullString
		if err := rows.Scan(&m.ID, &m.Brand, &collection, &m.ModelName, &refCode, &m.MSRP); err != nil {
			return nil, err
		}
		m.Collection = collection.String
		m.RefCode = refCode.String
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListingsByModelIDs retrieves all listings owned by the given models
func (db *DB) ListingsByModelIDs(ids []int64) ([]models.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, model_id, source, url, title, created_at
		FROM market_listings
		WHERE model_id = ANY($1)
	`
	rows, err := db.conn.Query(query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Listing
	for rows.Next() {
		var l models.Listing
		var title sql.NullString
		if err := rows.Scan(&l.ID, &l.ModelID, &l.Source, &l.URL, &title, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Title = title.String
		result = append(result, l)
	}
	return result, rows.Err()
}

// SnapshotsByListingIDsAndDate retrieves all snapshots for one capture date
func (db *DB) SnapshotsByListingIDsAndDate(ids []int64, day time.Time) ([]models.ListingSnapshot, error) {
	return db.SnapshotsByListingIDsAndDates(ids, []time.Time{day})
}

// SnapshotsByListingIDsAndDates retrieves snapshots for several capture dates
// in one round trip
func (db *DB) SnapshotsByListingIDsAndDates(ids []int64, days []time.Time) ([]models.ListingSnapshot, error) {
	if len(ids) == 0 || len(days) == 0 {
		return nil, nil
	}
	dates := make([]string, len(days))
	for i, d := range days {
		dates[i] = d.Format(models.DateLayout)
	}

	query := `
		SELECT id, listing_id, captured_date, price_value, availability_flag,
			   shipping_days_min, shipping_days_max
		FROM listing_snapshots
		WHERE listing_id = ANY($1) AND captured_date = ANY($2::date[])
	`
	rows, err := db.conn.Query(query, pq.Array(ids), pq.Array(dates))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ListingSnapshot
	for rows.Next() {
		var s models.ListingSnapshot
		if err := rows.Scan(&s.ID, &s.ListingID, &s.CapturedDate, &s.PriceValue,
			&s.AvailabilityFlag, &s.ShippingDaysMin, &s.ShippingDaysMax); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UpsertDailyStats persists derived rows keyed by (model_id, captured_date)
// inside a single transaction
func (db *DB) UpsertDailyStats(rows []models.ModelDailyStat) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}

	query := `
	INSERT INTO model_daily_stats (
		model_id, captured_date, median_price, listings_count, new_listings_count,
		sold_rate_proxy, premium_over_msrp, wait_time_index, wait_band, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (model_id, captured_date) DO UPDATE SET
		median_price = EXCLUDED.median_price,
		listings_count = EXCLUDED.listings_count,
		new_listings_count = EXCLUDED.new_listings_count,
		sold_rate_proxy = EXCLUDED.sold_rate_proxy,
		premium_over_msrp = EXCLUDED.premium_over_msrp,
		wait_time_index = EXCLUDED.wait_time_index,
		wait_band = EXCLUDED.wait_band,
		updated_at = NOW()
	`
	for _, row := range rows {
		_, err := tx.Exec(query,
			row.ModelID, row.CapturedDate.Format(models.DateLayout),
			row.MedianPrice, row.ListingsCount, row.NewListingsCount,
			row.SoldRateProxy, row.PremiumOverMSRP, row.WaitTimeIndex, row.WaitBand)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DailyStatsPresence returns the set of model ids that already have a daily
// stat row for the given date
func (db *DB) DailyStatsPresence(ids []int64, day time.Time) (map[int64]bool, error) {
	present := make(map[int64]bool)
	if len(ids) == 0 {
		return present, nil
	}

	query := `
		SELECT model_id
		FROM model_daily_stats
		WHERE model_id = ANY($1) AND captured_date = $2
	`
	rows, err := db.conn.Query(query, pq.Array(ids), day.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		present[id] = true
	}
	return present, rows.Err()
}
