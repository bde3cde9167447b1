package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"watch-market-portal/internal/config"
	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"
	"watch-market-portal/internal/scheduler"
	"watch-market-portal/internal/search"
	"watch-market-portal/internal/stats"
	"watch-market-portal/internal/validation"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db        *database.GormDB
	scheduler *scheduler.Scheduler
	search    *search.SearchClient
	config    *config.Config
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *database.GormDB, sched *scheduler.Scheduler, sc *search.SearchClient, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		db:        db,
		scheduler: sched,
		search:    sc,
		config:    cfg,
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	counts, err := h.db.TableCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tables": counts,
		"time":   time.Now(),
	})
}

// TriggerIngest manually triggers the daily ingest job
func (h *AdminHandler) TriggerIngest(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scheduler not available (MySQL/GORM required)",
		})
		return
	}

	log.Println("Admin: Manual ingest trigger requested")

	// Run in goroutine to avoid blocking
	go func() {
		if err := h.scheduler.RunNow(); err != nil {
			log.Printf("Admin: Manual ingest failed: %v", err)
		} else {
			log.Println("Admin: Manual ingest completed successfully")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Ingest job started",
		"status":  "running",
	})
}

// RunStats recomputes daily stats for a given date without collecting
func (h *AdminHandler) RunStats(c *gin.Context) {
	brand := c.DefaultQuery("brand", h.config.Ingest.Brand)
	day, ok := parseDateParam(c)
	if !ok {
		return
	}

	w := h.config.Ingest.ScoreWeights
	pipeline := stats.NewPipelineWithWeights(h.db, stats.WeightsOrDefault(w.Premium, w.Scarcity, w.Velocity))
	count, err := pipeline.Run(brand, day)
	if err != nil {
		log.Printf("Admin: Stats run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"brand":         brand,
		"captured_date": day.Format(models.DateLayout),
		"rows_upserted": count,
	})
}

// GetValidationReport runs the data quality checks for a given date
func (h *AdminHandler) GetValidationReport(c *gin.Context) {
	brand := c.DefaultQuery("brand", h.config.Ingest.Brand)
	day, ok := parseDateParam(c)
	if !ok {
		return
	}

	threshold := h.config.Ingest.AnomalyThresholdPct
	if raw := c.Query("threshold_pct"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold_pct must be a positive number"})
			return
		}
		threshold = parsed
	}

	engine := validation.NewEngine(h.db)
	report, err := engine.Run(brand, day, threshold)
	if err != nil {
		log.Printf("Admin: Validation run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ReindexModels rebuilds the search index from the catalog
func (h *AdminHandler) ReindexModels(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search not available"})
		return
	}

	brand := c.DefaultQuery("brand", h.config.Ingest.Brand)
	watchModels, err := h.db.ModelsByBrand(brand)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.search.IndexModels(watchModels); err != nil {
		log.Printf("Admin: Reindex failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex started",
		"brand":   brand,
		"count":   len(watchModels),
	})
}

// parseDateParam reads the optional ?date=YYYY-MM-DD query parameter,
// defaulting to today. Writes the error response itself on bad input.
func parseDateParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now(), true
	}
	day, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return day, true
}
