package database

import (
	"fmt"
	"strings"
	"time"

	"watch-market-portal/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate plus the latest-stats view
func (gdb *GormDB) InitSchema() error {
	if err := gdb.db.AutoMigrate(
		&models.WatchModel{},
		&models.Listing{},
		&models.ListingSnapshot{},
		&models.ModelDailyStat{},
	); err != nil {
		return err
	}

	// One row per model: its most recent daily stat. The catalog layer
	// prefers this view and degrades to scanning history when it is absent.
	view := `
	CREATE OR REPLACE VIEW latest_model_stats AS
	SELECT s.*
	FROM model_daily_stats s
	INNER JOIN (
		SELECT model_id, MAX(captured_date) AS captured_date
		FROM model_daily_stats
		GROUP BY model_id
	) latest ON latest.model_id = s.model_id AND latest.captured_date = s.captured_date
	`
	return gdb.db.Exec(view).Error
}

// ModelsByBrand retrieves all catalog models for a brand, ordered by id
func (gdb *GormDB) ModelsByBrand(brand string) ([]models.WatchModel, error) {
	var rows []models.WatchModel
	err := gdb.db.Where("brand = ?", brand).Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListingsByModelIDs retrieves all listings owned by the given models in one query
func (gdb *GormDB) ListingsByModelIDs(ids []int64) ([]models.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Listing
	err := gdb.db.Where("model_id IN ?", ids).Find(&rows).Error
	return rows, err
}

// SnapshotsByListingIDsAndDate retrieves all snapshots for one capture date
func (gdb *GormDB) SnapshotsByListingIDsAndDate(ids []int64, day time.Time) ([]models.ListingSnapshot, error) {
	return gdb.SnapshotsByListingIDsAndDates(ids, []time.Time{day})
}

// SnapshotsByListingIDsAndDates retrieves snapshots for several capture dates
// in a single round trip (used by the day-over-day anomaly check)
func (gdb *GormDB) SnapshotsByListingIDsAndDates(ids []int64, days []time.Time) ([]models.ListingSnapshot, error) {
	if len(ids) == 0 || len(days) == 0 {
		return nil, nil
	}
	dates := make([]string, len(days))
	for i, d := range days {
		dates[i] = d.Format(models.DateLayout)
	}
	var rows []models.ListingSnapshot
	err := gdb.db.Where("listing_id IN ? AND captured_date IN ?", ids, dates).Find(&rows).Error
	return rows, err
}

// UpsertDailyStats persists derived rows keyed by (model_id, captured_date).
// A rerun for the same key overwrites in place. The whole batch is written in
// one transaction so a failed run leaves no partial rows behind.
func (gdb *GormDB) UpsertDailyStats(rows []models.ModelDailyStat) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	err := gdb.db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			row := &rows[i]

			var existing models.ModelDailyStat
			result := tx.Where("model_id = ? AND captured_date = ?",
				row.ModelID, row.CapturedDate.Format(models.DateLayout)).First(&existing)

			if result.Error == gorm.ErrRecordNotFound {
				if err := tx.Create(row).Error; err != nil {
					return err
				}
				continue
			} else if result.Error != nil {
				return result.Error
			}

			// Overwrite in place, keeping the original row id and CreatedAt
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DailyStatsPresence returns the set of model ids that already have a daily
// stat row for the given date
func (gdb *GormDB) DailyStatsPresence(ids []int64, day time.Time) (map[int64]bool, error) {
	present := make(map[int64]bool)
	if len(ids) == 0 {
		return present, nil
	}

	var modelIDs []int64
	err := gdb.db.Model(&models.ModelDailyStat{}).
		Where("model_id IN ? AND captured_date = ?", ids, day.Format(models.DateLayout)).
		Pluck("model_id", &modelIDs).Error
	if err != nil {
		return nil, err
	}
	for _, id := range modelIDs {
		present[id] = true
	}
	return present, nil
}

// SaveListing persists a listing observed by the collector. Listings are
// append-only: an existing row (matched by url) is returned untouched.
func (gdb *GormDB) SaveListing(l *models.Listing) error {
	var existing models.Listing
	result := gdb.db.Where("url = ?", l.URL).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		return gdb.db.Create(l).Error
	} else if result.Error != nil {
		return result.Error
	}

	*l = existing
	return nil
}

// SaveSnapshot persists one observation per (listing, date). A second
// observation on the same day overwrites the first so the single-snapshot-
// per-day invariant holds.
func (gdb *GormDB) SaveSnapshot(s *models.ListingSnapshot) error {
	var existing models.ListingSnapshot
	result := gdb.db.Where("listing_id = ? AND captured_date = ?",
		s.ListingID, s.CapturedDate.Format(models.DateLayout)).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		return gdb.db.Create(s).Error
	} else if result.Error != nil {
		return result.Error
	}

	s.ID = existing.ID
	s.CreatedAt = existing.CreatedAt
	return gdb.db.Save(s).Error
}

// ModelFilters holds browsing filters for the catalog listing endpoint
type ModelFilters struct {
	Brand      string
	Query      string
	Collection string
	SortBy     string
	Page       int
	PageSize   int
}

// ListModels retrieves one page of catalog models with the total count
func (gdb *GormDB) ListModels(f ModelFilters) ([]models.WatchModel, int64, error) {
	query := gdb.db.Model(&models.WatchModel{}).Where("brand = ?", f.Brand)

	if f.Collection != "" {
		query = query.Where("collection LIKE ?", "%"+f.Collection+"%")
	}
	if f.Query != "" {
		q := "%" + strings.TrimSpace(strings.ReplaceAll(f.Query, ",", " ")) + "%"
		query = query.Where("model_name LIKE ? OR ref_code LIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Sort parameters map to fixed ORDER BY clauses (MySQL syntax)
	var orderClause string
	switch f.SortBy {
	case "model_name_asc":
		orderClause = "model_name ASC"
	case "msrp_asc":
		orderClause = "CASE WHEN msrp IS NULL THEN 1 ELSE 0 END, msrp ASC"
	case "msrp_desc":
		orderClause = "CASE WHEN msrp IS NULL THEN 1 ELSE 0 END, msrp DESC"
	case "newest":
		orderClause = "created_at DESC"
	default:
		orderClause = "collection ASC, model_name ASC"
	}

	var rows []models.WatchModel
	offset := (f.Page - 1) * f.PageSize
	err := query.Order(orderClause).Limit(f.PageSize).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// GetModelByID retrieves one catalog model, scoped to a brand when one is
// given. Detail lookups stay inside the served brand even when the id of an
// out-of-scope model leaks into a request.
func (gdb *GormDB) GetModelByID(id int64, brand string) (*models.WatchModel, error) {
	query := gdb.db.Where("id = ?", id)
	if brand != "" {
		query = query.Where("brand = ?", brand)
	}

	var model models.WatchModel
	if err := query.First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

// DailyStatsByModelID retrieves the full stat history for one model,
// oldest first
func (gdb *GormDB) DailyStatsByModelID(modelID int64) ([]models.ModelDailyStat, error) {
	var rows []models.ModelDailyStat
	err := gdb.db.Where("model_id = ?", modelID).Order("captured_date ASC").Find(&rows).Error
	return rows, err
}

// HasLatestStatsView reports whether the latest_model_stats view exists
func (gdb *GormDB) HasLatestStatsView() bool {
	var count int64
	err := gdb.db.Raw(
		"SELECT COUNT(*) FROM information_schema.views WHERE table_schema = DATABASE() AND table_name = ?",
		"latest_model_stats",
	).Scan(&count).Error
	return err == nil && count > 0
}

// LatestStatsFromView reads the most recent stat per model from the
// precomputed view
func (gdb *GormDB) LatestStatsFromView(ids []int64) ([]models.ModelDailyStat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ModelDailyStat
	err := gdb.db.Table("latest_model_stats").Where("model_id IN ?", ids).Find(&rows).Error
	return rows, err
}

// StatsHistoryByModelIDs retrieves all stat rows for the given models,
// newest first (scan path for the latest-stats read)
func (gdb *GormDB) StatsHistoryByModelIDs(ids []int64) ([]models.ModelDailyStat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ModelDailyStat
	err := gdb.db.Where("model_id IN ?", ids).Order("captured_date DESC").Find(&rows).Error
	return rows, err
}

// TableCounts returns row counts for the admin overview
func (gdb *GormDB) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	tables := map[string]interface{}{
		"brand_models":      &models.WatchModel{},
		"market_listings":   &models.Listing{},
		"listing_snapshots": &models.ListingSnapshot{},
		"model_daily_stats": &models.ModelDailyStat{},
	}
	for name, model := range tables {
		var count int64
		if err := gdb.db.Model(model).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[name] = count
	}
	return counts, nil
}
