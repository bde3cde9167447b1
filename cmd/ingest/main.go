package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"watch-market-portal/internal/config"
	"watch-market-portal/internal/database"
	"watch-market-portal/internal/models"
	"watch-market-portal/internal/stats"
	"watch-market-portal/internal/validation"
)

// ingestStore is the combined persistence surface one ingest run needs.
// Both database backends satisfy it.
type ingestStore interface {
	stats.Store
	validation.Store
	Close() error
}

func main() {
	config.LoadEnv()

	brandFlag := flag.String("brand", "", "Brand to process (default: from config, rolex)")
	dateFlag := flag.String("date", "", "Capture date in YYYY-MM-DD (default: today)")
	thresholdFlag := flag.Float64("anomaly-threshold-pct", 0,
		"Flag listing snapshot day-over-day jumps above this percentage (default: from config, 25)")
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = getEnv("CONFIG_PATH", "config/config.yaml")
	}
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	}

	brand := strings.ToLower(*brandFlag)
	if brand == "" {
		brand = appConfig.Ingest.Brand
	}

	day := time.Now()
	if *dateFlag != "" {
		day, err = time.Parse(models.DateLayout, *dateFlag)
		if err != nil {
			log.Fatalf("Invalid -date %q: expected YYYY-MM-DD", *dateFlag)
		}
	}

	thresholdSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "anomaly-threshold-pct" {
			thresholdSet = true
		}
	})
	threshold, err := resolveThreshold(thresholdSet, *thresholdFlag, appConfig.Ingest.AnomalyThresholdPct)
	if err != nil {
		log.Fatalf("Invalid -anomaly-threshold-pct: %v", err)
	}

	store, err := openStore(appConfig)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	w := appConfig.Ingest.ScoreWeights
	pipeline := stats.NewPipelineWithWeights(store, stats.WeightsOrDefault(w.Premium, w.Scarcity, w.Velocity))

	upserted, err := pipeline.Run(brand, day)
	if err != nil {
		log.Fatalf("Stats run failed: %v", err)
	}

	report, err := validation.NewEngine(store).Run(brand, day, threshold)
	if err != nil {
		log.Fatalf("Validation run failed: %v", err)
	}

	fmt.Printf("Upserted %d model_daily_stats rows for %s on %s\n",
		upserted, brand, day.Format(models.DateLayout))
	fmt.Printf("Validation summary: anomalies=%d missing_stats=%d duplicate_urls=%d\n",
		report.AnomalyCount, report.MissingStatsCount, report.DuplicateURLCount)

	if len(report.AnomalyExamples) > 0 {
		n := min(3, len(report.AnomalyExamples))
		fmt.Printf("Anomaly sample: %+v\n", report.AnomalyExamples[:n])
	}
	if len(report.MissingStatsIDs) > 0 {
		n := min(10, len(report.MissingStatsIDs))
		fmt.Printf("Missing model_ids sample: %v\n", report.MissingStatsIDs[:n])
	}
	if len(report.DuplicateURLSamples) > 0 {
		n := min(3, len(report.DuplicateURLSamples))
		fmt.Printf("Duplicate URL sample: %+v\n", report.DuplicateURLSamples[:n])
	}
}

// resolveThreshold picks the anomaly threshold: an explicitly passed flag
// must be positive, an omitted flag falls back to the configured value.
func resolveThreshold(flagSet bool, flagValue, configValue float64) (float64, error) {
	if flagSet {
		if flagValue <= 0 {
			return 0, fmt.Errorf("threshold_pct must be a positive number, got %v", flagValue)
		}
		return flagValue, nil
	}
	return configValue, nil
}

// openStore connects to the backend selected by the configuration.
func openStore(cfg *config.Config) (ingestStore, error) {
	dbType := cfg.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "mysql")
	}

	if dbType == "mysql" {
		log.Println("Using MySQL with GORM")
		mysqlCfg := cfg.Database.MySQL
		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}
		gdb, err := database.NewGormDB(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "watchmarket_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "watchmarket_pass"),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "watchmarket_db"),
		)
		if err != nil {
			return nil, err
		}
		return gdb, nil
	}

	log.Println("Using PostgreSQL")
	pgCfg := cfg.Database.Postgres
	portStr := ""
	if pgCfg.Port > 0 {
		portStr = fmt.Sprintf("%d", pgCfg.Port)
	}
	db, err := database.NewDB(
		getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
		getEnvOrConfig(portStr, "DB_PORT", "5432"),
		getEnvOrConfig(pgCfg.User, "DB_USER", "watchmarket_user"),
		getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", "watchmarket_pass"),
		getEnvOrConfig(pgCfg.Database, "DB_NAME", "watchmarket_db"),
	)
	if err != nil {
		return nil, err
	}
	return db, nil
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
