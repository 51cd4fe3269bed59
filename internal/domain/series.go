package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is a time-ordered collection of observations sharing the same
// variable semantics.
type Series []Observation

// Map returns a new series with fn applied to every observation.
func (s Series) Map(fn func(Observation) Observation) Series {
	out := make(Series, len(s))
	for i, obs := range s {
		out[i] = fn(obs)
	}
	return out
}

// Merge concatenates series and restores time order. Day and night LST
// observations interleave here; downstream matching is per-timestamp, so
// relative day/night order carries no meaning.
func Merge(series ...Series) Series {
	var out Series
	for _, s := range series {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// IndexByDate builds a calendar-day lookup table. The reanalysis sources emit
// one raster per day, so a duplicate date means the query window or the
// source is broken.
func (s Series) IndexByDate() (map[time.Time]Observation, error) {
	index := make(map[time.Time]Observation, len(s))
	for _, obs := range s {
		date := obs.Date()
		if _, ok := index[date]; ok {
			return nil, fmt.Errorf("duplicate observation for %s in %s series",
				date.Format("2006-01-02"), obs.Variable)
		}
		index[date] = obs
	}
	return index, nil
}

// ReduceMean reduces the series to one raster holding the per-pixel mean
// across time. NaN cells are excluded per pixel; a pixel with no valid
// observation at all stays NaN.
func (s Series) ReduceMean(variable string) (Observation, error) {
	return s.reduce(variable, func(acc, v float64, n int) float64 {
		return acc + v
	}, func(acc float64, n int) float64 {
		return acc / float64(n)
	})
}

// ReduceMin reduces the series to the per-pixel minimum across time.
func (s Series) ReduceMin(variable string) (Observation, error) {
	return s.reduce(variable, func(acc, v float64, n int) float64 {
		if n == 0 || v < acc {
			return v
		}
		return acc
	}, nil)
}

// ReduceMax reduces the series to the per-pixel maximum across time.
func (s Series) ReduceMax(variable string) (Observation, error) {
	return s.reduce(variable, func(acc, v float64, n int) float64 {
		if n == 0 || v > acc {
			return v
		}
		return acc
	}, nil)
}

// reduce folds valid cell values across the series. accumulate sees the
// running value, the new cell value, and how many values came before it;
// finish (optional) converts the accumulated value once per pixel.
func (s Series) reduce(variable string, accumulate func(acc, v float64, n int) float64, finish func(acc float64, n int) float64) (Observation, error) {
	if len(s) == 0 {
		return Observation{}, fmt.Errorf("cannot reduce an empty series")
	}
	grid := s[0].Raster.Grid
	acc := make([]float64, grid.Rows*grid.Cols)
	counts := make([]int, len(acc))

	start, end := s[0].Start, s[0].End
	for _, obs := range s {
		if !obs.Raster.Grid.Equal(grid) {
			return Observation{}, fmt.Errorf("series rasters are not aligned: %s at %s",
				obs.Variable, obs.Start.Format(time.RFC3339))
		}
		if obs.Start.Before(start) {
			start = obs.Start
		}
		if obs.End.After(end) {
			end = obs.End
		}
		for i, v := range obs.Raster.Values() {
			if math.IsNaN(v) {
				continue
			}
			acc[i] = accumulate(acc[i], v, counts[i])
			counts[i]++
		}
	}

	for i := range acc {
		if counts[i] == 0 {
			acc[i] = math.NaN()
			continue
		}
		if finish != nil {
			acc[i] = finish(acc[i], counts[i])
		}
	}

	raster, err := NewRaster(grid, acc)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Raster: raster, Variable: variable, Start: start, End: end}, nil
}
