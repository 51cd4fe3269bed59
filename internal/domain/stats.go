package domain

import (
	"fmt"
	"math"
)

// RegionalStats summarizes a raster over a region at a sampling resolution.
type RegionalStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int64
}

// ReduceRegion samples the observation over the region at the given metric
// scale and returns summary statistics of the valid samples. The sampling
// grid is budget-checked before any pixel is touched; exceeding maxPixels is
// a hard error, not a truncation.
func ReduceRegion(obs Observation, region *Region, scaleMeters float64, maxPixels int64) (RegionalStats, error) {
	grid := region.GridForScale(scaleMeters)
	if grid.Cells() > maxPixels {
		return RegionalStats{}, &PixelBudgetError{Pixels: grid.Cells(), Budget: maxPixels}
	}

	// Welford's online update keeps stdDev exact for constant inputs.
	var (
		count    int64
		mean, m2 float64
		min      = math.Inf(1)
		max      = math.Inf(-1)
	)
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			lon, lat := grid.CellCenter(row, col)
			if !region.Contains(lon, lat) {
				continue
			}
			v, ok := obs.Raster.Sample(lon, lat)
			if !ok || math.IsNaN(v) {
				continue
			}
			count++
			delta := v - mean
			mean += delta / float64(count)
			m2 += delta * (v - mean)
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}
	if count == 0 {
		return RegionalStats{}, fmt.Errorf("no valid %s pixels inside region %s", obs.Variable, region.Name)
	}
	return RegionalStats{
		Mean:   mean,
		StdDev: math.Sqrt(m2 / float64(count)),
		Min:    min,
		Max:    max,
		Count:  count,
	}, nil
}

// RegionalTimeSeries reduces every observation of a calibrated series to its
// regional mean, producing one (date, value) point per observation in time
// order.
func RegionalTimeSeries(s Series, region *Region, scaleMeters float64, maxPixels int64) ([]TimeSeriesPoint, error) {
	points := make([]TimeSeriesPoint, 0, len(s))
	for _, obs := range s {
		stats, err := ReduceRegion(obs, region, scaleMeters, maxPixels)
		if err != nil {
			return nil, fmt.Errorf("regional mean for %s: %w", obs.Start.Format("2006-01-02"), err)
		}
		points = append(points, TimeSeriesPoint{
			Date:     obs.Date(),
			Value:    stats.Mean,
			Variable: obs.Variable,
			Region:   region.Name,
		})
	}
	return points, nil
}
