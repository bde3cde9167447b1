package catalog

import (
	"errors"
	"fmt"

	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Store is the persistence surface the browsing layer needs.
// *database.GormDB satisfies it.
type Store interface {
	ListModels(f database.ModelFilters) ([]models.WatchModel, int64, error)
	GetModelByID(id int64, brand string) (*models.WatchModel, error)
	DailyStatsByModelID(modelID int64) ([]models.ModelDailyStat, error)
}

// Service serves the read-only browsing surface over already-persisted
// catalog and stats rows
type Service struct {
	db     Store
	latest LatestStatsReader
}

// NewService creates a catalog service with the default latest-stats strategy
func NewService(db *database.GormDB) *Service {
	return &Service{db: db, latest: NewLatestStatsReader(db)}
}

// NewServiceWithReader creates a catalog service with an explicit reader
func NewServiceWithReader(db Store, latest LatestStatsReader) *Service {
	return &Service{db: db, latest: latest}
}

// ListParams are the browsing filters for the model list endpoint
type ListParams struct {
	Brand      string
	Page       int
	PageSize   int
	Query      string
	Collection string
	Sort       string
}

// ModelSummary is one row of the paginated model list, decorated with the
// model's most recent stats when available
type ModelSummary struct {
	ID                 int64    `json:"id"`
	Brand              string   `json:"brand"`
	Collection         string   `json:"collection"`
	ModelName          string   `json:"model_name"`
	RefCode            string   `json:"ref_code"`
	MSRP               *float64 `json:"msrp,omitempty"`
	ImageURL           string   `json:"image_url,omitempty"`
	CurrentMedianPrice *float64 `json:"current_median_price,omitempty"`
	WaitTimeIndex      *float64 `json:"wait_time_index,omitempty"`
	WaitBand           string   `json:"wait_band,omitempty"`
}

// ModelPage is one page of model summaries
type ModelPage struct {
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int64          `json:"total"`
	TotalPages int64          `json:"total_pages"`
	Items      []ModelSummary `json:"items"`
}

// ModelDetail is a single model with its full stat history
type ModelDetail struct {
	Model      models.WatchModel       `json:"model"`
	DailyStats []models.ModelDailyStat `json:"daily_stats"`
}

// ListModels retrieves one page of models with their latest stats
func (s *Service) ListModels(p ListParams) (*ModelPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}

	rows, total, err := s.db.ListModels(database.ModelFilters{
		Brand:      p.Brand,
		Query:      p.Query,
		Collection: p.Collection,
		SortBy:     p.Sort,
		Page:       p.Page,
		PageSize:   p.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, m := range rows {
		ids[i] = m.ID
	}
	latest, err := s.latest.LatestByModelIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest stats (%s): %w", s.latest.Name(), err)
	}

	items := make([]ModelSummary, 0, len(rows))
	for _, m := range rows {
		summary := ModelSummary{
			ID:         m.ID,
			Brand:      m.Brand,
			Collection: m.Collection,
			ModelName:  m.ModelName,
			RefCode:    m.RefCode,
			MSRP:       m.MSRP,
			ImageURL:   m.ImageURL,
		}
		if stat, ok := latest[m.ID]; ok {
			price := stat.MedianPrice
			index := stat.WaitTimeIndex
			summary.CurrentMedianPrice = &price
			summary.WaitTimeIndex = &index
			summary.WaitBand = stat.WaitBand
		}
		items = append(items, summary)
	}

	return &ModelPage{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: totalPages(total, p.PageSize),
		Items:      items,
	}, nil
}

// ModelDetail retrieves one model and its full stat history, oldest first.
// The lookup is scoped to the brand: a model outside it is treated the same
// as a missing one, (nil, nil).
func (s *Service) ModelDetail(brand string, id int64) (*ModelDetail, error) {
	model, err := s.db.GetModelByID(id, brand)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch model %d: %w", id, err)
	}

	history, err := s.db.DailyStatsByModelID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for model %d: %w", id, err)
	}

	return &ModelDetail{Model: *model, DailyStats: history}, nil
}

func totalPages(total int64, pageSize int) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
