package stats

import (
	"fmt"
	"log"
	"time"

	"watch-market-portal/internal/models"
)

// Pipeline computes and persists the daily per-model stats for one brand and
// one capture date. The computation is a single-pass synchronous
// transformation over an in-memory batch; a fetch failure at any step aborts
// the run before anything is written.
type Pipeline struct {
	store   Store
	weights Weights
}

// NewPipeline creates a pipeline with the default scoring weights
func NewPipeline(store Store) *Pipeline {
	return NewPipelineWithWeights(store, DefaultWeights())
}

// NewPipelineWithWeights creates a pipeline with custom scoring weights
func NewPipelineWithWeights(store Store, w Weights) *Pipeline {
	return &Pipeline{store: store, weights: w}
}

// Compute builds the scored batch for (brand, day) without persisting it.
// An empty scope at any step returns an empty batch, not an error.
func (p *Pipeline) Compute(brand string, day time.Time) ([]models.ModelDailyStat, error) {
	watchModels, err := p.store.ModelsByBrand(brand)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models for brand %s: %w", brand, err)
	}
	if len(watchModels) == 0 {
		return nil, nil
	}

	modelIDs := make([]int64, len(watchModels))
	for i, m := range watchModels {
		modelIDs[i] = m.ID
	}

	listings, err := p.store.ListingsByModelIDs(modelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	if len(listings) == 0 {
		return nil, nil
	}

	listingIDs := make([]int64, len(listings))
	for i, l := range listings {
		listingIDs[i] = l.ID
	}

	snapshots, err := p.store.SnapshotsByListingIDsAndDate(listingIDs, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	listingsByModel := make(map[int64][]models.Listing)
	for _, l := range listings {
		listingsByModel[l.ModelID] = append(listingsByModel[l.ModelID], l)
	}

	// Models without a priced snapshot today are skipped; they surface later
	// through the missing-stats validation check.
	var raws []ModelDayRaw
	for _, m := range watchModels {
		raw := AggregateModelDay(m.ID, m.MSRP, listingsByModel[m.ID], snapshots, day)
		if raw != nil {
			raws = append(raws, *raw)
		}
	}

	return ScoreRows(raws, p.weights), nil
}

// Run computes the batch and persists it with an idempotent upsert keyed by
// (model_id, captured_date). It returns the number of rows written.
func (p *Pipeline) Run(brand string, day time.Time) (int, error) {
	rows, err := p.Compute(brand, day)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		log.Printf("Pipeline: no eligible data for brand=%s date=%s", brand, day.Format(models.DateLayout))
		return 0, nil
	}

	written, err := p.store.UpsertDailyStats(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert daily stats: %w", err)
	}

	log.Printf("Pipeline: upserted %d model_daily_stats rows for brand=%s date=%s",
		written, brand, day.Format(models.DateLayout))
	return written, nil
}
