package scheduler

import (
	"fmt"
	"log"
	"time"

	"watch-market-portal/internal/collector"
	"watch-market-portal/internal/config"
	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"
	"watch-market-portal/internal/ratelimit"
	"watch-market-portal/internal/stats"
	"watch-market-portal/internal/validation"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily ingest routine: collect fresh marketplace
// observations (when the collector is enabled), recompute daily stats,
// then produce a data quality report.
type Scheduler struct {
	cron      *cron.Cron
	db        *database.GormDB
	config    *config.Config
	pipeline  *stats.Pipeline
	engine    *validation.Engine
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db *database.GormDB, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		db:       db,
		config:   cfg,
		pipeline: stats.NewPipelineWithWeights(db, configuredWeights(cfg)),
		engine:   validation.NewEngine(db),
	}
}

func configuredWeights(cfg *config.Config) stats.Weights {
	w := cfg.Ingest.ScoreWeights
	return stats.WeightsOrDefault(w.Premium, w.Scarcity, w.Velocity)
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Ingest.DailyRunEnabled {
		log.Println("Scheduler: Daily run is disabled in configuration")
		return nil
	}

	cronSpec := s.parseDailyRunTime(s.config.Ingest.DailyRunTime)

	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("Scheduler: Starting daily ingest job...")
		if err := s.runDailyIngest(); err != nil {
			log.Printf("Scheduler: Daily ingest failed: %v", err)
		} else {
			log.Println("Scheduler: Daily ingest completed successfully")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started with daily run at %s (cron: %s)", s.config.Ingest.DailyRunTime, cronSpec)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// runDailyIngest executes collection, stats computation and validation
// for today's date. Collection failures do not block the stats run:
// yesterday's listings still produce a (sparser) batch.
func (s *Scheduler) runDailyIngest() error {
	brand := s.config.Ingest.Brand
	day := time.Now()

	if s.config.Collector.Enabled {
		limiter := ratelimit.NewLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.RequestsPerHour,
			s.config.RateLimit.RequestsPerDay,
			s.config.RateLimit.Enabled,
		)
		col := collector.New(s.db, s.config.Collector, limiter)
		if result, err := col.Run(brand, day); err != nil {
			log.Printf("Scheduler: Collection failed, continuing with existing observations: %v", err)
		} else {
			log.Printf("Scheduler: Collected %d snapshots across %d models (%d errors)",
				result.SnapshotsSaved, result.ModelsVisited, result.Errors)
		}
	}

	count, err := s.pipeline.Run(brand, day)
	if err != nil {
		return fmt.Errorf("stats run failed: %w", err)
	}
	log.Printf("Scheduler: Upserted %d daily stat rows for %s", count, day.Format(models.DateLayout))

	report, err := s.engine.Run(brand, day, s.config.Ingest.AnomalyThresholdPct)
	if err != nil {
		return fmt.Errorf("validation run failed: %w", err)
	}
	log.Printf("Scheduler: Validation: %d anomalies, %d models missing stats, %d duplicate URLs",
		report.AnomalyCount, report.MissingStatsCount, report.DuplicateURLCount)

	return nil
}

// RunNow immediately executes the daily ingest job (for manual trigger)
func (s *Scheduler) RunNow() error {
	log.Println("Scheduler: Manual trigger - starting ingest job...")
	return s.runDailyIngest()
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "03:00" -> "0 3 * * *" (run at 3:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("Scheduler: Failed to parse time '%s', using default 03:00", timeStr)
	return "0 3 * * *"
}
