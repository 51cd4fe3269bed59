package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// temperaturePalette is the display ramp shared by all map layers, spanning
// the plausible Celsius range of the study regions.
var temperaturePalette = domain.Palette{
	Colors: []string{
		"040274", "0502a3", "0502ce", "0602ff", "307ef3", "30c8e2",
		"3be285", "86e26f", "b5e22e", "ffd611", "ff8b13", "ff0000",
		"de0101",
	},
	Min: 10,
	Max: 45,
}

// exportPrefixes maps each output variable to its export file prefix.
var exportPrefixes = map[string]string{
	domain.VarAirTempMean: "MeanAirTemp",
	domain.VarAirTempMin:  "MinAirTemp",
	domain.VarAirTempMax:  "MaxAirTemp",
}

// chartTitles maps each output variable to its chart title stem.
var chartTitles = map[string]string{
	domain.VarAirTempMean: "Mean Air Temperature",
	domain.VarAirTempMin:  "Min Air Temperature",
	domain.VarAirTempMax:  "Max Air Temperature",
}

// report computes regional statistics and hands every output to its sink:
// charts and the series table, map layers with the region outline, raster
// exports, and the optional series publisher.
func (p *Pipeline) report(ctx context.Context, region *domain.Region, calibrated map[string]domain.Series, composites map[string]domain.Observation) error {
	var allPoints []domain.TimeSeriesPoint
	for _, b := range branches {
		points, err := domain.RegionalTimeSeries(calibrated[b.output], region, p.params.ScaleMeters, p.params.MaxPixels)
		if err != nil {
			return fmt.Errorf("regional series for %s: %w", b.output, err)
		}
		allPoints = append(allPoints, points...)

		spec := domain.ChartSpec{
			Title:       fmt.Sprintf("%s %s %s", chartTitles[b.output], region.Name, p.params.Window.Label()),
			Region:      region.Name,
			Reducer:     b.reducer,
			ScaleMeters: p.params.ScaleMeters,
			XField:      "date",
			Style: domain.ChartStyle{
				LineWidth: 1,
				PointSize: 3,
			},
			Points: points,
		}
		if err := p.charts.WriteChart(spec); err != nil {
			return err
		}
	}
	if err := p.charts.WriteSeriesTable(allPoints); err != nil {
		return err
	}

	for _, b := range branches {
		composite := composites[b.output]

		stats, err := domain.ReduceRegion(composite, region, p.params.ScaleMeters, p.params.MaxPixels)
		if err != nil {
			return fmt.Errorf("regional stats for %s: %w", b.output, err)
		}
		p.logger.Info("regional composite",
			"variable", b.output,
			"mean_c", stats.Mean,
			"stddev_c", stats.StdDev,
			"min_c", stats.Min,
			"max_c", stats.Max,
			"cells", stats.Count,
		)

		layer := domain.MapLayer{
			Name:        fmt.Sprintf("%s %s", chartTitles[b.output], p.params.Window.Label()),
			Observation: composite,
			Palette:     temperaturePalette,
		}
		if err := p.maps.AddLayer(layer); err != nil {
			return err
		}

		req := domain.ExportRequest{
			Observation: composite,
			Name:        exportName(exportPrefixes[b.output], region.Name, p.params.Window),
			Folder:      "exports",
			Region:      region,
			ScaleMeters: p.params.ScaleMeters,
			CRS:         p.params.CRS,
			MaxPixels:   p.params.MaxPixels,
		}
		if err := p.exporter.Export(ctx, req); err != nil {
			return err
		}
	}

	if err := p.maps.AddOutline(region); err != nil {
		return err
	}
	if err := p.maps.Flush(); err != nil {
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.PublishSeries(ctx, allPoints); err != nil {
			return fmt.Errorf("publish series: %w", err)
		}
	}

	p.logger.Info("report written",
		"charts", len(branches),
		"layers", len(branches),
		"exports", len(branches),
		"series_points", len(allPoints),
	)
	return nil
}

func exportName(prefix, region string, window domain.TimeWindow) string {
	return fmt.Sprintf("%s_%s_%s", prefix, strings.ReplaceAll(region, " ", ""), window.Label())
}
