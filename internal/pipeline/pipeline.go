// Package pipeline orchestrates a calibration run: resolve the region
// boundary, extract quality-filtered satellite temperatures, blend them
// with reanalysis air temperature, aggregate over the window, and hand the
// results to the report sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	geojson "github.com/paulmach/go.geojson"

	httpadapter "github.com/couchcryptid/airtemp-calibration/internal/adapter/http"
	"github.com/couchcryptid/airtemp-calibration/internal/domain"
	"github.com/couchcryptid/airtemp-calibration/internal/observability"
)

// Catalog serves region boundaries and gridded granules.
type Catalog interface {
	Boundaries(ctx context.Context, dataset, field, value string) (*geojson.FeatureCollection, error)
	Granules(ctx context.Context, dataset string, window domain.TimeWindow, bands []string) ([]domain.Granule, error)
}

// RasterExporter persists one aggregated raster.
type RasterExporter interface {
	Export(ctx context.Context, req domain.ExportRequest) error
}

// ChartSink receives chart specifications and the merged series table.
type ChartSink interface {
	WriteChart(spec domain.ChartSpec) error
	WriteSeriesTable(points []domain.TimeSeriesPoint) error
}

// MapSink accumulates map layers and writes them out on Flush.
type MapSink interface {
	AddLayer(layer domain.MapLayer) error
	AddOutline(region *domain.Region) error
	Flush() error
}

// SeriesPublisher pushes the regional time series to a message broker.
// Optional; a nil publisher skips publication.
type SeriesPublisher interface {
	PublishSeries(ctx context.Context, points []domain.TimeSeriesPoint) error
}

// Params are the run settings the pipeline needs from configuration.
type Params struct {
	RegionName        string
	BoundaryDataset   string
	BoundaryField     string
	LSTDataset        string
	ReanalysisDataset string
	Window            domain.TimeWindow
	Alpha             float64
	ScaleMeters       float64
	CRS               string
	MaxPixels         int64
	ShowProgress      bool
}

// Pipeline runs one calibration end to end.
type Pipeline struct {
	catalog   Catalog
	exporter  RasterExporter
	charts    ChartSink
	maps      MapSink
	publisher SeriesPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	params    Params

	ready atomic.Bool
	stage atomic.Value // string
}

// New creates a Pipeline. Publisher may be nil.
func New(catalog Catalog, exporter RasterExporter, charts ChartSink, maps MapSink, publisher SeriesPublisher, logger *slog.Logger, metrics *observability.Metrics, params Params) *Pipeline {
	p := &Pipeline{
		catalog:   catalog,
		exporter:  exporter,
		charts:    charts,
		maps:      maps,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		params:    params,
	}
	p.stage.Store("pending")
	return p
}

// CheckReadiness returns nil once the region boundary has been resolved.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("region boundary not resolved yet")
	}
	return nil
}

// RunStatus reports the current run for the /status endpoint.
func (p *Pipeline) RunStatus() httpadapter.RunStatus {
	return httpadapter.RunStatus{
		Region: p.params.RegionName,
		Start:  p.params.Window.Start,
		End:    p.params.Window.End,
		Stage:  p.stage.Load().(string),
		Alpha:  p.params.Alpha,
	}
}

// Run executes the calibration once. Any stage failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("calibration run started",
		"region", p.params.RegionName,
		"window", p.params.Window.Label(),
		"alpha", p.params.Alpha,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var region *domain.Region
	err := p.timeStage(ctx, "resolve", func(ctx context.Context) error {
		var err error
		region, err = p.resolveRegion(ctx)
		return err
	})
	if err != nil {
		return err
	}
	p.ready.Store(true)

	var lst domain.Series
	err = p.timeStage(ctx, "extract", func(ctx context.Context) error {
		var err error
		lst, err = p.extractLST(ctx, region)
		return err
	})
	if err != nil {
		return err
	}

	var reanalysis map[string]domain.Series
	err = p.timeStage(ctx, "reanalysis", func(ctx context.Context) error {
		var err error
		reanalysis, err = p.loadReanalysis(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var calibrated map[string]domain.Series
	err = p.timeStage(ctx, "calibrate", func(_ context.Context) error {
		var err error
		calibrated, err = p.calibrate(lst, reanalysis)
		return err
	})
	if err != nil {
		return err
	}

	var composites map[string]domain.Observation
	err = p.timeStage(ctx, "aggregate", func(_ context.Context) error {
		var err error
		composites, err = p.aggregate(calibrated)
		return err
	})
	if err != nil {
		return err
	}

	err = p.timeStage(ctx, "report", func(ctx context.Context) error {
		return p.report(ctx, region, calibrated, composites)
	})
	if err != nil {
		return err
	}

	p.stage.Store("done")
	p.logger.Info("calibration run finished", "region", region.Name)
	return nil
}

// timeStage runs one stage, records its duration, and wraps its error with
// the stage name.
func (p *Pipeline) timeStage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.stage.Store(name)
	start := time.Now()
	err := fn(ctx)
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

func (p *Pipeline) resolveRegion(ctx context.Context) (*domain.Region, error) {
	fc, err := p.catalog.Boundaries(ctx, p.params.BoundaryDataset, p.params.BoundaryField, p.params.RegionName)
	if err != nil {
		return nil, err
	}
	region, err := domain.ResolveRegion(fc, p.params.BoundaryDataset, p.params.BoundaryField, p.params.RegionName)
	if err != nil {
		return nil, err
	}
	west, south, east, north := region.Bounds()
	p.logger.Info("region resolved",
		"region", region.Name,
		"bounds", fmt.Sprintf("%.3f,%.3f,%.3f,%.3f", west, south, east, north),
	)
	return region, nil
}
