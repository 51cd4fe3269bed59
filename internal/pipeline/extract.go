package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// bandPair couples a satellite temperature band with its quality band.
type bandPair struct {
	temperature string
	quality     string
}

var lstBandPairs = []bandPair{
	{temperature: domain.BandLSTDay, quality: domain.BandQCDay},
	{temperature: domain.BandLSTNight, quality: domain.BandQCNight},
}

// extractLST fetches the satellite granules for the window and turns each
// day and night band into a quality-filtered, rescaled, region-clipped
// observation. Day and night observations of the same granule stay separate
// so the aggregation sees both.
func (p *Pipeline) extractLST(ctx context.Context, region *domain.Region) (domain.Series, error) {
	bands := make([]string, 0, 2*len(lstBandPairs))
	for _, pair := range lstBandPairs {
		bands = append(bands, pair.temperature, pair.quality)
	}

	granules, err := p.catalog.Granules(ctx, p.params.LSTDataset, p.params.Window, bands)
	if err != nil {
		return nil, err
	}

	var series domain.Series
	for _, granule := range granules {
		observations, err := p.extractGranule(granule, region)
		if err != nil {
			return nil, err
		}
		series = domain.Merge(series, observations)
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no %s observations in window %s", p.params.LSTDataset, p.params.Window.Label())
	}

	p.metrics.ObservationsExtracted.Add(float64(len(series)))
	p.logger.Info("satellite observations extracted",
		"dataset", p.params.LSTDataset,
		"granules", len(granules),
		"observations", len(series),
	)
	return series, nil
}

func (p *Pipeline) extractGranule(granule domain.Granule, region *domain.Region) (domain.Series, error) {
	var series domain.Series
	for _, pair := range lstBandPairs {
		band, ok := granule.Bands[pair.temperature]
		if !ok {
			continue
		}
		quality, ok := granule.Bands[pair.quality]
		if !ok {
			return nil, fmt.Errorf("granule at %s has %s but no %s band",
				granule.Start.Format("2006-01-02"), pair.temperature, pair.quality)
		}

		masked, err := domain.ApplyQualityMask(band, quality, domain.CloudQualityBit)
		if err != nil {
			return nil, err
		}
		p.metrics.CellsMasked.Add(float64(band.ValidCells() - masked.ValidCells()))

		celsius := masked.Apply(domain.RescaleLST)
		clipped := region.Clip(celsius)

		series = append(series, domain.Observation{
			Raster:   clipped,
			Variable: domain.VarLST,
			Start:    granule.Start,
			End:      granule.End,
		})
	}
	return series, nil
}

// loadReanalysis fetches the daily reanalysis granules and splits them into
// one series per air-temperature variable. Values stay in Kelvin until
// calibration.
func (p *Pipeline) loadReanalysis(ctx context.Context) (map[string]domain.Series, error) {
	variables := []string{domain.VarReanalysisMean, domain.VarReanalysisMin, domain.VarReanalysisMax}

	granules, err := p.catalog.Granules(ctx, p.params.ReanalysisDataset, p.params.Window, variables)
	if err != nil {
		return nil, err
	}
	if len(granules) == 0 {
		return nil, fmt.Errorf("no %s granules in window %s", p.params.ReanalysisDataset, p.params.Window.Label())
	}

	series := make(map[string]domain.Series, len(variables))
	for _, granule := range granules {
		for _, variable := range variables {
			raster, ok := granule.Bands[variable]
			if !ok {
				return nil, fmt.Errorf("granule at %s is missing %s",
					granule.Start.Format("2006-01-02"), variable)
			}
			series[variable] = append(series[variable], domain.Observation{
				Raster:   raster,
				Variable: variable,
				Start:    granule.Start,
				End:      granule.End,
			})
		}
	}

	p.logger.Info("reanalysis loaded",
		"dataset", p.params.ReanalysisDataset,
		"granules", len(granules),
		"variables", len(series),
	)
	return series, nil
}
