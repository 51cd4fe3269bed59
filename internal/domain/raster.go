package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Grid describes the georeferencing of a raster: a north-up grid of square
// cells in EPSG:4326, anchored at its north-west corner.
type Grid struct {
	Rows     int
	Cols     int
	West     float64 // longitude of the west edge, degrees
	North    float64 // latitude of the north edge, degrees
	CellSize float64 // degrees per cell
}

// CellCenter returns the coordinate of the center of cell (row, col).
func (g Grid) CellCenter(row, col int) (lon, lat float64) {
	lon = g.West + (float64(col)+0.5)*g.CellSize
	lat = g.North - (float64(row)+0.5)*g.CellSize
	return lon, lat
}

// Cells returns the total cell count.
func (g Grid) Cells() int64 {
	return int64(g.Rows) * int64(g.Cols)
}

// Equal reports whether two grids describe the same cell layout, with a small
// tolerance on the floating-point anchors.
func (g Grid) Equal(other Grid) bool {
	const eps = 1e-9
	return g.Rows == other.Rows && g.Cols == other.Cols &&
		math.Abs(g.West-other.West) < eps &&
		math.Abs(g.North-other.North) < eps &&
		math.Abs(g.CellSize-other.CellSize) < eps
}

// Raster is a single-band grid of float64 cells backed by a dense matrix.
// NaN marks no-data cells. Rasters are treated as immutable: every transform
// allocates a new backing matrix.
type Raster struct {
	Grid  Grid
	cells *mat.Dense
}

// NewRaster builds a raster from row-major values. The value slice length
// must equal Rows*Cols.
func NewRaster(grid Grid, values []float64) (Raster, error) {
	if grid.Rows <= 0 || grid.Cols <= 0 {
		return Raster{}, fmt.Errorf("raster grid must have positive dimensions, got %dx%d", grid.Rows, grid.Cols)
	}
	if len(values) != grid.Rows*grid.Cols {
		return Raster{}, fmt.Errorf("raster expects %d values for a %dx%d grid, got %d",
			grid.Rows*grid.Cols, grid.Rows, grid.Cols, len(values))
	}
	data := make([]float64, len(values))
	copy(data, values)
	return Raster{Grid: grid, cells: mat.NewDense(grid.Rows, grid.Cols, data)}, nil
}

// NewConstantRaster builds a raster with every cell set to v.
func NewConstantRaster(grid Grid, v float64) (Raster, error) {
	values := make([]float64, grid.Rows*grid.Cols)
	for i := range values {
		values[i] = v
	}
	return NewRaster(grid, values)
}

// At returns the cell value at (row, col).
func (r Raster) At(row, col int) float64 {
	return r.cells.At(row, col)
}

// Sample returns the cell value containing the coordinate, nearest-cell.
// The second return is false when the coordinate falls outside the grid.
func (r Raster) Sample(lon, lat float64) (float64, bool) {
	col := int(math.Floor((lon - r.Grid.West) / r.Grid.CellSize))
	row := int(math.Floor((r.Grid.North - lat) / r.Grid.CellSize))
	if row < 0 || row >= r.Grid.Rows || col < 0 || col >= r.Grid.Cols {
		return 0, false
	}
	return r.cells.At(row, col), true
}

// Values returns a copy of the cell values in row-major order.
func (r Raster) Values() []float64 {
	raw := r.cells.RawMatrix()
	out := make([]float64, r.Grid.Rows*r.Grid.Cols)
	for i := 0; i < r.Grid.Rows; i++ {
		copy(out[i*r.Grid.Cols:(i+1)*r.Grid.Cols], raw.Data[i*raw.Stride:i*raw.Stride+r.Grid.Cols])
	}
	return out
}

// ValidCells counts the cells that are not NaN.
func (r Raster) ValidCells() int {
	n := 0
	for _, v := range r.Values() {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Apply returns a new raster with fn applied to every cell. NaN cells pass
// through fn like any other value; transforms that must preserve masking
// should return NaN for NaN input (the arithmetic ones here do naturally).
func (r Raster) Apply(fn func(v float64) float64) Raster {
	values := r.Values()
	for i, v := range values {
		values[i] = fn(v)
	}
	out, _ := NewRaster(r.Grid, values)
	return out
}

// Zip combines two rasters cell by cell. The grids must match.
func Zip(a, b Raster, fn func(av, bv float64) float64) (Raster, error) {
	if !a.Grid.Equal(b.Grid) {
		return Raster{}, fmt.Errorf("raster grids do not match: %dx%d vs %dx%d",
			a.Grid.Rows, a.Grid.Cols, b.Grid.Rows, b.Grid.Cols)
	}
	av := a.Values()
	bv := b.Values()
	for i := range av {
		av[i] = fn(av[i], bv[i])
	}
	return NewRaster(a.Grid, av)
}

// Observation is a raster tagged with its variable name and observation
// window, mirroring the catalog metadata (system:time_start/system:time_end).
type Observation struct {
	Raster   Raster
	Variable string
	Start    time.Time
	End      time.Time
}

// Date returns the UTC calendar day of the observation start, the key used
// for matching LST observations to reanalysis rasters.
func (o Observation) Date() time.Time {
	return o.Start.UTC().Truncate(24 * time.Hour)
}

// Rename returns the observation under a new variable name.
func (o Observation) Rename(variable string) Observation {
	o.Variable = variable
	return o
}

// TimeWindow is a closed date range.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Label renders the window for output naming: the year-month when the window
// stays inside one calendar month, otherwise the full date range.
func (w TimeWindow) Label() string {
	if w.Start.Year() == w.End.Year() && w.Start.Month() == w.End.Month() {
		return w.Start.Format("2006-01")
	}
	return w.Start.Format("20060102") + "_" + w.End.Format("20060102")
}

// Granule is one time step returned by a raster catalog: a set of co-located
// bands sharing an observation window.
type Granule struct {
	Start time.Time
	End   time.Time
	Bands map[string]Raster
}

// TimeSeriesPoint is one regional-mean sample of a calibrated series.
type TimeSeriesPoint struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Variable string    `json:"variable"`
	Region   string    `json:"region"`
}
