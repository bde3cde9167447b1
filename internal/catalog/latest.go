package catalog

import (
	"log"

	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"
)

// LatestStatsReader resolves the most recent daily stat per model. Two named
// strategies implement it; precedence is fixed at construction, the scan
// strategy is a capability fallback, not an error handler.
type LatestStatsReader interface {
	Name() string
	LatestByModelIDs(ids []int64) (map[int64]models.ModelDailyStat, error)
}

// viewReader reads the precomputed latest_model_stats view
type viewReader struct {
	db *database.GormDB
}

func (r *viewReader) Name() string { return "latest_view" }

func (r *viewReader) LatestByModelIDs(ids []int64) (map[int64]models.ModelDailyStat, error) {
	rows, err := r.db.LatestStatsFromView(ids)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]models.ModelDailyStat, len(rows))
	for _, row := range rows {
		latest[row.ModelID] = row
	}
	return latest, nil
}

// historyScanReader scans the raw stat history, newest first, and keeps the
// first row seen per model
type historyScanReader struct {
	db *database.GormDB
}

func (r *historyScanReader) Name() string { return "history_scan" }

func (r *historyScanReader) LatestByModelIDs(ids []int64) (map[int64]models.ModelDailyStat, error) {
	rows, err := r.db.StatsHistoryByModelIDs(ids)
	if err != nil {
		return nil, err
	}
	return latestPerModel(rows), nil
}

// latestPerModel reduces rows sorted newest-first to one row per model
func latestPerModel(rows []models.ModelDailyStat) map[int64]models.ModelDailyStat {
	latest := make(map[int64]models.ModelDailyStat)
	for _, row := range rows {
		if _, seen := latest[row.ModelID]; !seen {
			latest[row.ModelID] = row
		}
	}
	return latest
}

// NewLatestStatsReader picks the strategy once, at construction: the
// precomputed view when the database has it, the history scan otherwise.
func NewLatestStatsReader(db *database.GormDB) LatestStatsReader {
	if db.HasLatestStatsView() {
		return &viewReader{db: db}
	}
	log.Println("Catalog: latest_model_stats view unavailable, using history scan")
	return &historyScanReader{db: db}
}
