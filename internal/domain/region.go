package domain

import (
	"fmt"
	"math"
	"strings"

	geojson "github.com/paulmach/go.geojson"
	"github.com/twpayne/go-geos"
)

// metersPerDegree approximates one degree of longitude at the equator, used
// to derive EPSG:4326 cell sizes from metric sampling scales.
const metersPerDegree = 111320.0

// Region is a named polygon boundary resolved from a boundary dataset.
// Immutable once resolved; used as a spatial mask for clipping and reduction.
type Region struct {
	Name    string
	Outline *geojson.Feature
	geom    *geos.Geom
}

// ResolveRegion finds the single feature whose property field equals name.
// Zero matches or more than one match fail the lookup: the caller must supply
// a name unique within the dataset.
func ResolveRegion(fc *geojson.FeatureCollection, dataset, field, name string) (*Region, error) {
	var matches []*geojson.Feature
	for _, f := range fc.Features {
		if v, ok := f.Properties[field].(string); ok && v == name {
			matches = append(matches, f)
		}
	}
	switch {
	case len(matches) == 0:
		return nil, &RegionNotFoundError{Dataset: dataset, Field: field, Name: name}
	case len(matches) > 1:
		return nil, &RegionAmbiguousError{Name: name, Matches: len(matches)}
	}

	feature := matches[0]
	wkt, err := geometryWKT(feature.Geometry)
	if err != nil {
		return nil, fmt.Errorf("resolve region %q: %w", name, err)
	}
	geom, err := geos.NewGeomFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("resolve region %q: parse boundary geometry: %w", name, err)
	}
	return &Region{Name: name, Outline: feature, geom: geom}, nil
}

// Contains reports whether the coordinate lies inside the region boundary.
func (r *Region) Contains(lon, lat float64) bool {
	pt, err := geos.NewGeomFromWKT(fmt.Sprintf("POINT (%.10f %.10f)", lon, lat))
	if err != nil {
		return false
	}
	return r.geom.Contains(pt)
}

// Bounds returns the bounding box of the region boundary.
func (r *Region) Bounds() (west, south, east, north float64) {
	west, south = math.Inf(1), math.Inf(1)
	east, north = math.Inf(-1), math.Inf(-1)
	visit := func(coord []float64) {
		west = math.Min(west, coord[0])
		east = math.Max(east, coord[0])
		south = math.Min(south, coord[1])
		north = math.Max(north, coord[1])
	}
	g := r.Outline.Geometry
	switch {
	case g.IsPolygon():
		for _, ring := range g.Polygon {
			for _, coord := range ring {
				visit(coord)
			}
		}
	case g.IsMultiPolygon():
		for _, poly := range g.MultiPolygon {
			for _, ring := range poly {
				for _, coord := range ring {
					visit(coord)
				}
			}
		}
	}
	return west, south, east, north
}

// GridForScale derives the sampling grid covering the region bounds at the
// given metric scale (meters per cell).
func (r *Region) GridForScale(scaleMeters float64) Grid {
	west, south, east, north := r.Bounds()
	cell := scaleMeters / metersPerDegree
	cols := int(math.Ceil((east - west) / cell))
	rows := int(math.Ceil((north - south) / cell))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return Grid{Rows: rows, Cols: cols, West: west, North: north, CellSize: cell}
}

// MaskGrid rasterizes the boundary onto a grid: 1 where the cell center lies
// inside the region, NaN elsewhere.
func (r *Region) MaskGrid(grid Grid) Raster {
	values := make([]float64, grid.Rows*grid.Cols)
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			lon, lat := grid.CellCenter(row, col)
			if r.Contains(lon, lat) {
				values[row*grid.Cols+col] = 1
			} else {
				values[row*grid.Cols+col] = math.NaN()
			}
		}
	}
	raster, _ := NewRaster(grid, values)
	return raster
}

// Clip masks out every raster cell whose center falls outside the region.
func (r *Region) Clip(raster Raster) Raster {
	clipped, _ := Zip(raster, r.MaskGrid(raster.Grid), func(v, mask float64) float64 {
		if math.IsNaN(mask) {
			return math.NaN()
		}
		return v
	})
	return clipped
}

// geometryWKT renders a GeoJSON polygon or multipolygon as WKT for GEOS.
func geometryWKT(g *geojson.Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("boundary feature has no geometry")
	}
	switch {
	case g.IsPolygon():
		return "POLYGON " + polygonWKT(g.Polygon), nil
	case g.IsMultiPolygon():
		parts := make([]string, len(g.MultiPolygon))
		for i, poly := range g.MultiPolygon {
			parts[i] = polygonWKT(poly)
		}
		return "MULTIPOLYGON (" + strings.Join(parts, ", ") + ")", nil
	default:
		return "", fmt.Errorf("boundary geometry must be a polygon, got %s", g.Type)
	}
}

func polygonWKT(rings [][][]float64) string {
	parts := make([]string, len(rings))
	for i, ring := range rings {
		coords := make([]string, len(ring))
		for j, coord := range ring {
			coords[j] = fmt.Sprintf("%.10f %.10f", coord[0], coord[1])
		}
		parts[i] = "(" + strings.Join(coords, ", ") + ")"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
