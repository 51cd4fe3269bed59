package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	// Run parameters.
	RegionName string
	StartDate  time.Time
	EndDate    time.Time
	Alpha      float64

	// Source datasets.
	BoundaryDataset   string
	BoundaryField     string
	LSTDataset        string
	ReanalysisDataset string

	// Catalog access.
	CatalogBaseURL   string
	CatalogTimeout   time.Duration
	CatalogCacheSize int

	// Output.
	OutputDir         string
	ExportScaleMeters float64
	ExportCRS         string
	MaxPixels         int64

	// Optional Kafka publication of the regional time series.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Observability.
	MetricsAddr  string // empty disables the metrics server
	LogLevel     string
	LogFormat    string
	ShowProgress bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. Defaults reproduce the reference Pantanal January 2010 run.
func Load() (*Config, error) {
	startDate, err := parseDate("START_DATE", "2010-01-01")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate("END_DATE", "2010-01-31")
	if err != nil {
		return nil, err
	}

	alpha, err := parseFloat("ALPHA", 0.6)
	if err != nil {
		return nil, err
	}

	scale, err := parseFloat("EXPORT_SCALE_M", 1000)
	if err != nil {
		return nil, err
	}

	maxPixelsFloat, err := parseFloat("MAX_PIXELS", 1e13)
	if err != nil {
		return nil, err
	}

	timeoutStr := envOrDefault("CATALOG_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		return nil, errors.New("invalid CATALOG_TIMEOUT")
	}

	kafkaTopic := os.Getenv("KAFKA_SERIES_TOPIC")
	kafkaEnabled := kafkaTopic != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		RegionName: envOrDefault("REGION_NAME", "Pantanal"),
		StartDate:  startDate,
		EndDate:    endDate,
		Alpha:      alpha,

		BoundaryDataset:   envOrDefault("BOUNDARY_DATASET", "MapBiomas/biomes-2019"),
		BoundaryField:     envOrDefault("BOUNDARY_FIELD", "BIOME"),
		LSTDataset:        envOrDefault("LST_DATASET", "MODIS/061/MOD11A1"),
		ReanalysisDataset: envOrDefault("REANALYSIS_DATASET", "ECMWF/ERA5/DAILY"),

		CatalogBaseURL:   envOrDefault("CATALOG_BASE_URL", "http://localhost:8081"),
		CatalogTimeout:   timeout,
		CatalogCacheSize: parseCacheSize(),

		OutputDir:         envOrDefault("OUTPUT_DIR", "out"),
		ExportScaleMeters: scale,
		ExportCRS:         envOrDefault("EXPORT_CRS", "EPSG:4326"),
		MaxPixels:         int64(maxPixelsFloat),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   kafkaTopic,

		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		LogFormat:    envOrDefault("LOG_FORMAT", "json"),
		ShowProgress: os.Getenv("PROGRESS") == "true",
	}

	if cfg.RegionName == "" {
		return nil, errors.New("REGION_NAME is required")
	}
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("ALPHA must be in [0,1], got %g", cfg.Alpha)
	}
	if cfg.EndDate.Before(cfg.StartDate) {
		return nil, errors.New("END_DATE must not precede START_DATE")
	}
	if cfg.ExportScaleMeters <= 0 {
		return nil, errors.New("EXPORT_SCALE_M must be positive")
	}
	if cfg.MaxPixels <= 0 {
		return nil, errors.New("MAX_PIXELS must be positive")
	}
	if cfg.CatalogBaseURL == "" {
		return nil, errors.New("CATALOG_BASE_URL is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SERIES_TOPIC is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDate(key, fallback string) (time.Time, error) {
	raw := envOrDefault(key, fallback)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q is not a YYYY-MM-DD date", key, raw)
	}
	return t.UTC(), nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", key, raw)
	}
	return v, nil
}

func parseCacheSize() int {
	if s := os.Getenv("CATALOG_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
