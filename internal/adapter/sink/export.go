// Package sink writes the run outputs: raster exports, chart specs, map
// layer manifests, and the regional time-series table. Everything lands
// under one output directory; the interactive viewers consuming these files
// are external.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// ascNoData is the ESRI ASCII grid no-data sentinel used for masked cells.
const ascNoData = -9999

// Exporter writes aggregated rasters as ESRI ASCII grids with a JSON
// sidecar. Values are rounded to integer Celsius at export time only;
// in-memory statistics always use unrounded values.
type Exporter struct {
	outputDir string
	logger    *slog.Logger
}

// NewExporter creates a raster exporter rooted at outputDir.
func NewExporter(outputDir string, logger *slog.Logger) *Exporter {
	return &Exporter{outputDir: outputDir, logger: logger}
}

// Export writes one raster. The request's pixel budget is checked before
// anything is written; a rejected write surfaces as an error, never as a
// partial file left in place.
func (e *Exporter) Export(ctx context.Context, req domain.ExportRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raster := req.Observation.Raster
	if raster.Grid.Cells() > req.MaxPixels {
		return &domain.PixelBudgetError{Pixels: raster.Grid.Cells(), Budget: req.MaxPixels}
	}

	dir := filepath.Join(e.outputDir, req.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export %s: %w", req.Name, err)
	}

	gridPath := filepath.Join(dir, req.Name+".asc")
	if err := writeASCIIGrid(gridPath, raster, true); err != nil {
		return fmt.Errorf("export %s: %w", req.Name, err)
	}

	sidecar := exportSidecar{
		Name:        req.Name,
		Variable:    req.Observation.Variable,
		Region:      req.Region.Name,
		Start:       req.Observation.Start,
		End:         req.Observation.End,
		CRS:         req.CRS,
		ScaleMeters: req.ScaleMeters,
		Rows:        raster.Grid.Rows,
		Cols:        raster.Grid.Cols,
		NoData:      ascNoData,
		CreatedAt:   domain.Now(),
	}
	if err := writeJSON(filepath.Join(dir, req.Name+".json"), sidecar); err != nil {
		return fmt.Errorf("export %s: %w", req.Name, err)
	}

	e.logger.Info("raster exported",
		"name", req.Name,
		"variable", req.Observation.Variable,
		"cells", raster.Grid.Cells(),
	)
	return nil
}

type exportSidecar struct {
	Name        string    `json:"name"`
	Variable    string    `json:"variable"`
	Region      string    `json:"region"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CRS         string    `json:"crs"`
	ScaleMeters float64   `json:"scale_m"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	NoData      int       `json:"nodata"`
	CreatedAt   time.Time `json:"created_at"`
}

// writeASCIIGrid renders a raster in ESRI ASCII grid format. With rounded
// set, cell values are rounded to the nearest integer.
func writeASCIIGrid(path string, raster domain.Raster, rounded bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	grid := raster.Grid
	south := grid.North - float64(grid.Rows)*grid.CellSize
	header := fmt.Sprintf("ncols %d\nnrows %d\nxllcorner %.10f\nyllcorner %.10f\ncellsize %.10f\nNODATA_value %d\n",
		grid.Cols, grid.Rows, grid.West, south, grid.CellSize, ascNoData)
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	var sb strings.Builder
	for row := 0; row < grid.Rows; row++ {
		sb.Reset()
		for col := 0; col < grid.Cols; col++ {
			if col > 0 {
				sb.WriteByte(' ')
			}
			v := raster.At(row, col)
			switch {
			case math.IsNaN(v):
				fmt.Fprintf(&sb, "%d", ascNoData)
			case rounded:
				fmt.Fprintf(&sb, "%d", int(math.Round(v)))
			default:
				fmt.Fprintf(&sb, "%g", v)
			}
		}
		sb.WriteByte('\n')
		if _, err := f.WriteString(sb.String()); err != nil {
			return err
		}
	}
	return f.Sync()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Sync()
}

// slugify turns a human title into a stable file name.
func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return strings.Trim(slug, "_")
}
