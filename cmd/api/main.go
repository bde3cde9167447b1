package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"watch-market-portal/internal/catalog"
	"watch-market-portal/internal/config"
	"watch-market-portal/internal/database"
	"watch-market-portal/internal/handlers"
	"watch-market-portal/internal/ratelimit"
	"watch-market-portal/internal/scheduler"
	"watch-market-portal/internal/search"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	gormDB         *database.GormDB
	searchClient   *search.SearchClient
	catalogService *catalog.Service
	appConfig      *config.Config
	rateLimiter    *ratelimit.Limiter
	appScheduler   *scheduler.Scheduler
)

func main() {
	config.LoadEnv()

	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// The browsing API needs the GORM backend. The raw Postgres backend
	// only covers the ingest surface (see cmd/ingest).
	mysqlCfg := appConfig.Database.MySQL
	portStr := ""
	if mysqlCfg.Port > 0 {
		portStr = fmt.Sprintf("%d", mysqlCfg.Port)
	}

	gormDB, err = database.NewGormDB(
		getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
		getEnvOrConfig(portStr, "DB_PORT", "3306"),
		getEnvOrConfig(mysqlCfg.User, "DB_USER", "watchmarket_user"),
		getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "watchmarket_pass"),
		getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "watchmarket_db"),
	)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer gormDB.Close()

	if err := gormDB.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	catalogService = catalog.NewService(gormDB)

	// Initialize Meilisearch using config
	meilisearchHost := appConfig.Search.Meilisearch.Host
	if meilisearchHost == "" {
		meilisearchHost = getEnv("MEILISEARCH_HOST", "http://meilisearch:7700")
	}
	meilisearchKey := appConfig.Search.Meilisearch.APIKey
	if meilisearchKey == "" {
		meilisearchKey = getEnv("MEILISEARCH_KEY", "masterKey123")
	}

	searchClient = search.NewSearchClient(meilisearchHost, meilisearchKey)

	// Wait for Meilisearch to be ready
	time.Sleep(2 * time.Second)

	if err := searchClient.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}

	rateLimiter = ratelimit.NewLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.RequestsPerDay,
		appConfig.RateLimit.Enabled,
	)
	log.Printf("Rate limiter initialized: %d req/min, %d req/hour, %d req/day (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.RequestsPerDay,
		appConfig.RateLimit.Enabled,
	)

	appScheduler = scheduler.NewScheduler(gormDB, appConfig)
	if err := appScheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer appScheduler.Stop()

	// Setup Gin router
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	// Routes
	r.GET("/health", healthCheck)
	r.GET("/api/models", getModels)
	r.GET("/api/models/:id", getModel)
	r.GET("/api/models/:id/stats", getModelStatsHistory)

	r.GET("/api/search", searchModels)
	r.POST("/api/search/advanced", advancedSearchModels)

	r.GET("/api/ratelimit/stats", getRateLimitStats)

	adminHandler := handlers.NewAdminHandler(gormDB, appScheduler, searchClient, appConfig)
	admin := r.Group("/api/admin")
	{
		admin.GET("/stats", adminHandler.GetStats)
		admin.POST("/ingest/trigger", adminHandler.TriggerIngest)
		admin.POST("/stats/run", adminHandler.RunStats)
		admin.GET("/validation/report", adminHandler.GetValidationReport)
		admin.POST("/search/reindex", adminHandler.ReindexModels)
	}
	log.Println("Admin API routes registered at /api/admin/*")

	port := getEnv("PORT", "8084")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// getModels returns one page of the catalog with latest stats attached
func getModels(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "25"))

	result, err := catalogService.ListModels(catalog.ListParams{
		Brand:      c.DefaultQuery("brand", appConfig.Ingest.Brand),
		Page:       page,
		PageSize:   pageSize,
		Query:      c.Query("q"),
		Collection: c.Query("collection"),
		Sort:       c.Query("sort"),
	})
	if err != nil {
		log.Printf("Failed to list models: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// getModel returns one model with its full daily stats history
func getModel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model ID"})
		return
	}

	detail, err := catalogService.ModelDetail(appConfig.Ingest.Brand, id)
	if err != nil {
		log.Printf("Failed to load model %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// getModelStatsHistory returns only the daily stats series for a model
func getModelStatsHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model ID"})
		return
	}

	stats, err := gormDB.DailyStatsByModelID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_id": id,
		"stats":    stats,
		"count":    len(stats),
	})
}

// searchModels performs a free text search over the catalog
func searchModels(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	hits, err := searchClient.Search(query, limit)
	if err != nil {
		log.Printf("Search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query": query,
		"hits":  hits,
		"count": len(hits),
	})
}

// advancedSearchModels performs filtered and sorted search
func advancedSearchModels(c *gin.Context) {
	var req struct {
		Query      string   `json:"query"`
		Limit      int64    `json:"limit"`
		Offset     int64    `json:"offset"`
		Brand      string   `json:"brand"`
		Collection string   `json:"collection"`
		Sort       []string `json:"sort"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Limit <= 0 {
		req.Limit = 20
	}

	result, err := searchClient.AdvancedSearch(search.SearchRequest{
		Query:      req.Query,
		Limit:      req.Limit,
		Offset:     req.Offset,
		Brand:      req.Brand,
		Collection: req.Collection,
		Sort:       req.Sort,
	})
	if err != nil {
		log.Printf("Advanced search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":            result.Hits,
		"total_hits":      result.TotalHits,
		"processing_time": result.ProcessingTime,
	})
}

func getRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, rateLimiter.GetStats())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise env var, otherwise default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
