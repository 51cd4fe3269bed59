package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// MapWriter accumulates map layers and writes them as full-precision
// ASCII grids alongside a layers.json manifest describing palettes and
// value ranges for external renderers.
type MapWriter struct {
	outputDir string
	logger    *slog.Logger
	entries   []layerEntry
}

// NewMapWriter creates a map writer rooted at outputDir.
func NewMapWriter(outputDir string, logger *slog.Logger) *MapWriter {
	return &MapWriter{outputDir: outputDir, logger: logger}
}

type layerEntry struct {
	Name     string         `json:"name"`
	File     string         `json:"file"`
	Variable string         `json:"variable,omitempty"`
	Start    time.Time      `json:"start,omitempty"`
	End      time.Time      `json:"end,omitempty"`
	Palette  domain.Palette `json:"palette,omitempty"`
	Kind     string         `json:"kind"`
}

// AddLayer writes the layer's raster to maps/<slug>.asc and records a
// manifest entry. Values are kept at full precision.
func (w *MapWriter) AddLayer(layer domain.MapLayer) error {
	dir := filepath.Join(w.outputDir, "maps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("add map layer %q: %w", layer.Name, err)
	}

	file := slugify(layer.Name) + ".asc"
	if err := writeASCIIGrid(filepath.Join(dir, file), layer.Observation.Raster, false); err != nil {
		return fmt.Errorf("add map layer %q: %w", layer.Name, err)
	}

	w.entries = append(w.entries, layerEntry{
		Name:     layer.Name,
		File:     file,
		Variable: layer.Observation.Variable,
		Start:    layer.Observation.Start,
		End:      layer.Observation.End,
		Palette:  layer.Palette,
		Kind:     "raster",
	})
	w.logger.Info("map layer added", "name", layer.Name, "file", file)
	return nil
}

// AddOutline writes the region boundary to maps/<slug>_outline.geojson
// and records a vector manifest entry.
func (w *MapWriter) AddOutline(region *domain.Region) error {
	dir := filepath.Join(w.outputDir, "maps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("add outline %q: %w", region.Name, err)
	}

	fc := geojson.NewFeatureCollection()
	fc.AddFeature(region.Outline)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("add outline %q: %w", region.Name, err)
	}

	file := slugify(region.Name) + "_outline.geojson"
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		return fmt.Errorf("add outline %q: %w", region.Name, err)
	}

	w.entries = append(w.entries, layerEntry{
		Name: region.Name + " outline",
		File: file,
		Kind: "vector",
	})
	w.logger.Info("map outline added", "region", region.Name, "file", file)
	return nil
}

// Flush writes the accumulated manifest to maps/layers.json.
func (w *MapWriter) Flush() error {
	dir := filepath.Join(w.outputDir, "maps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("flush map layers: %w", err)
	}
	manifest := struct {
		GeneratedAt time.Time    `json:"generated_at"`
		Layers      []layerEntry `json:"layers"`
	}{
		GeneratedAt: domain.Now(),
		Layers:      w.entries,
	}
	if err := writeJSON(filepath.Join(dir, "layers.json"), manifest); err != nil {
		return fmt.Errorf("flush map layers: %w", err)
	}
	w.logger.Info("map manifest written", "layers", len(w.entries))
	return nil
}
