package catalog

import (
	"testing"
	"time"

	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCatalogStore struct {
	models  []models.WatchModel
	history map[int64][]models.ModelDailyStat
}

func (f *fakeCatalogStore) ListModels(filters database.ModelFilters) ([]models.WatchModel, int64, error) {
	var rows []models.WatchModel
	for _, m := range f.models {
		if filters.Brand == "" || m.Brand == filters.Brand {
			rows = append(rows, m)
		}
	}
	return rows, int64(len(rows)), nil
}

func (f *fakeCatalogStore) GetModelByID(id int64, brand string) (*models.WatchModel, error) {
	for _, m := range f.models {
		if m.ID == id && (brand == "" || m.Brand == brand) {
			model := m
			return &model, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogStore) DailyStatsByModelID(modelID int64) ([]models.ModelDailyStat, error) {
	return f.history[modelID], nil
}

type staticReader struct {
	latest map[int64]models.ModelDailyStat
}

func (r *staticReader) Name() string { return "static" }

func (r *staticReader) LatestByModelIDs(ids []int64) (map[int64]models.ModelDailyStat, error) {
	return r.latest, nil
}

func newCatalogFixture() *Service {
	captured, _ := time.Parse(models.DateLayout, "2024-06-01")
	store := &fakeCatalogStore{
		models: []models.WatchModel{
			{ID: 1, Brand: "rolex", ModelName: "Submariner Date", RefCode: "126610LN"},
			{ID: 2, Brand: "omega", ModelName: "Speedmaster", RefCode: "310.30.42"},
		},
		history: map[int64][]models.ModelDailyStat{
			1: {{ModelID: 1, CapturedDate: captured, MedianPrice: 13500, WaitTimeIndex: 0.7, WaitBand: "3-5 years"}},
			2: {{ModelID: 2, CapturedDate: captured, MedianPrice: 6200}},
		},
	}
	return NewServiceWithReader(store, &staticReader{latest: map[int64]models.ModelDailyStat{}})
}

func TestModelDetail_ScopedToBrand(t *testing.T) {
	svc := newCatalogFixture()

	detail, err := svc.ModelDetail("rolex", 1)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Submariner Date", detail.Model.ModelName)
	require.Len(t, detail.DailyStats, 1)
	assert.Equal(t, 13500.0, detail.DailyStats[0].MedianPrice)

	// An existing model outside the served brand reads as missing
	detail, err = svc.ModelDetail("rolex", 2)
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestModelDetail_MissingModel(t *testing.T) {
	svc := newCatalogFixture()

	detail, err := svc.ModelDetail("rolex", 99)
	require.NoError(t, err)
	assert.Nil(t, detail)
}
