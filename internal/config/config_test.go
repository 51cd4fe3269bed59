package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Pantanal", cfg.RegionName)
	assert.Equal(t, time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2010, time.January, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 0.6, cfg.Alpha)
	assert.Equal(t, "MapBiomas/biomes-2019", cfg.BoundaryDataset)
	assert.Equal(t, "BIOME", cfg.BoundaryField)
	assert.Equal(t, "MODIS/061/MOD11A1", cfg.LSTDataset)
	assert.Equal(t, "ECMWF/ERA5/DAILY", cfg.ReanalysisDataset)
	assert.Equal(t, "http://localhost:8081", cfg.CatalogBaseURL)
	assert.Equal(t, 30*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 64, cfg.CatalogCacheSize)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 1000.0, cfg.ExportScaleMeters)
	assert.Equal(t, "EPSG:4326", cfg.ExportCRS)
	assert.Equal(t, int64(1e13), cfg.MaxPixels)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.ShowProgress)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("REGION_NAME", "Cerrado")
	t.Setenv("START_DATE", "2012-06-01")
	t.Setenv("END_DATE", "2012-06-30")
	t.Setenv("ALPHA", "0.4")
	t.Setenv("EXPORT_SCALE_M", "500")
	t.Setenv("MAX_PIXELS", "1e9")
	t.Setenv("CATALOG_BASE_URL", "http://catalog:9000")
	t.Setenv("CATALOG_TIMEOUT", "5s")
	t.Setenv("CATALOG_CACHE_SIZE", "16")
	t.Setenv("OUTPUT_DIR", "/tmp/airtemp")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SERIES_TOPIC", "regional-airtemp")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("PROGRESS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Cerrado", cfg.RegionName)
	assert.Equal(t, time.Date(2012, time.June, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2012, time.June, 30, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 0.4, cfg.Alpha)
	assert.Equal(t, 500.0, cfg.ExportScaleMeters)
	assert.Equal(t, int64(1e9), cfg.MaxPixels)
	assert.Equal(t, "http://catalog:9000", cfg.CatalogBaseURL)
	assert.Equal(t, 5*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 16, cfg.CatalogCacheSize)
	assert.Equal(t, "/tmp/airtemp", cfg.OutputDir)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "regional-airtemp", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.ShowProgress)
}

func TestLoad_KafkaDisabledByFlag(t *testing.T) {
	t.Setenv("KAFKA_SERIES_TOPIC", "regional-airtemp")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad start date", "START_DATE", "01/01/2010", "START_DATE"},
		{"bad alpha syntax", "ALPHA", "six tenths", "ALPHA"},
		{"alpha above one", "ALPHA", "1.5", "ALPHA"},
		{"alpha below zero", "ALPHA", "-0.1", "ALPHA"},
		{"bad timeout", "CATALOG_TIMEOUT", "soon", "CATALOG_TIMEOUT"},
		{"zero scale", "EXPORT_SCALE_M", "0", "EXPORT_SCALE_M"},
		{"zero pixel budget", "MAX_PIXELS", "0", "MAX_PIXELS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_WindowOrder(t *testing.T) {
	t.Setenv("START_DATE", "2010-02-01")
	t.Setenv("END_DATE", "2010-01-01")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "END_DATE")
}

func TestLoad_KafkaEnabledWithoutTopic(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_SERIES_TOPIC")
}
