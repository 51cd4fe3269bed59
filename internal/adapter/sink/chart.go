package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// ChartWriter persists chart specifications as JSON and the merged
// regional time series as CSV. Rendering is left to external tooling.
type ChartWriter struct {
	outputDir string
	logger    *slog.Logger
}

// NewChartWriter creates a chart writer rooted at outputDir.
func NewChartWriter(outputDir string, logger *slog.Logger) *ChartWriter {
	return &ChartWriter{outputDir: outputDir, logger: logger}
}

// WriteChart writes one chart specification to charts/<slug>.json.
func (w *ChartWriter) WriteChart(spec domain.ChartSpec) error {
	dir := filepath.Join(w.outputDir, "charts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write chart %q: %w", spec.Title, err)
	}
	path := filepath.Join(dir, slugify(spec.Title)+".json")
	if err := writeJSON(path, spec); err != nil {
		return fmt.Errorf("write chart %q: %w", spec.Title, err)
	}
	w.logger.Info("chart written", "title", spec.Title, "points", len(spec.Points))
	return nil
}

type seriesRow struct {
	Date     string  `csv:"date"`
	Region   string  `csv:"region"`
	Variable string  `csv:"variable"`
	Celsius  float64 `csv:"celsius"`
}

// WriteSeriesTable writes all regional time-series points as one CSV,
// sorted by date then variable so diffs between runs stay readable.
func (w *ChartWriter) WriteSeriesTable(points []domain.TimeSeriesPoint) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("write series table: %w", err)
	}

	rows := make([]seriesRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, seriesRow{
			Date:     p.Date.Format("2006-01-02"),
			Region:   p.Region,
			Variable: p.Variable,
			Celsius:  p.Value,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Variable < rows[j].Variable
	})

	path := filepath.Join(w.outputDir, "series.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write series table: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write series table: %w", err)
	}
	w.logger.Info("series table written", "rows", len(rows), "path", path)
	return nil
}
