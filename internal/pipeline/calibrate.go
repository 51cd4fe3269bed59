package pipeline

import (
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// branch binds a reanalysis source variable to its calibrated output
// variable and window reducer.
type branch struct {
	source  string
	output  string
	reducer string
}

var branches = []branch{
	{source: domain.VarReanalysisMean, output: domain.VarAirTempMean, reducer: "mean"},
	{source: domain.VarReanalysisMin, output: domain.VarAirTempMin, reducer: "min"},
	{source: domain.VarReanalysisMax, output: domain.VarAirTempMax, reducer: "max"},
}

// calibrate blends every satellite observation with the matching-date
// reanalysis raster, once per output variable. A satellite observation with
// no reanalysis raster on its date fails the run; silently dropping days
// would bias the window aggregates.
//
// The catalog serves both datasets regridded to a shared grid, so the blend
// operates cell by cell without resampling here.
func (p *Pipeline) calibrate(lst domain.Series, reanalysis map[string]domain.Series) (map[string]domain.Series, error) {
	bar := p.newProgressBar(len(branches)*len(lst), "calibrating")

	calibrated := make(map[string]domain.Series, len(branches))
	for _, b := range branches {
		index, err := reanalysis[b.source].IndexByDate()
		if err != nil {
			return nil, err
		}

		series := make(domain.Series, 0, len(lst))
		for _, obs := range lst {
			rean, ok := index[obs.Date()]
			if !ok {
				p.metrics.CalibrationErrors.Inc()
				return nil, &domain.NoCalibrationMatchError{Variable: b.source, Date: obs.Date()}
			}

			blended, err := domain.Calibrate(obs.Raster, rean.Raster, p.params.Alpha)
			if err != nil {
				p.metrics.CalibrationErrors.Inc()
				return nil, err
			}
			p.metrics.CalibrationsComputed.Inc()
			if bar != nil {
				bar.Add(1) //nolint:errcheck // progress display only
			}

			series = append(series, domain.Observation{
				Raster:   blended,
				Variable: b.output,
				Start:    obs.Start,
				End:      obs.End,
			})
		}
		calibrated[b.output] = series
	}

	p.logger.Info("calibration complete",
		"alpha", p.params.Alpha,
		"observations", len(lst),
		"variables", len(calibrated),
	)
	return calibrated, nil
}

// aggregate reduces each calibrated series to its window composite: mean of
// means, min of mins, max of maxes.
func (p *Pipeline) aggregate(calibrated map[string]domain.Series) (map[string]domain.Observation, error) {
	composites := make(map[string]domain.Observation, len(branches))
	for _, b := range branches {
		series := calibrated[b.output]

		var composite domain.Observation
		var err error
		switch b.reducer {
		case "min":
			composite, err = series.ReduceMin(b.output)
		case "max":
			composite, err = series.ReduceMax(b.output)
		default:
			composite, err = series.ReduceMean(b.output)
		}
		if err != nil {
			return nil, err
		}
		composites[b.output] = composite
	}
	return composites, nil
}

func (p *Pipeline) newProgressBar(size int, description string) *progressbar.ProgressBar {
	if !p.params.ShowProgress {
		return nil
	}
	return progressbar.NewOptions(size,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			os.Stderr.WriteString("\n") //nolint:errcheck // progress display only
		}),
	)
}
