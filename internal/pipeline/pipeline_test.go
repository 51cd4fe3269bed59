package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
	"github.com/couchcryptid/airtemp-calibration/internal/observability"
)

const (
	testBoundaryDataset = "MapBiomas/biomes-2019"
	testLSTDataset      = "MODIS/061/MOD11A1"
	testReanDataset     = "ECMWF/ERA5/DAILY"
)

type mockCatalog struct {
	boundaries    *geojson.FeatureCollection
	boundariesErr error
	granules      map[string][]domain.Granule
	granulesErr   error
	granuleCalls  []string
}

func (m *mockCatalog) Boundaries(_ context.Context, _, _, _ string) (*geojson.FeatureCollection, error) {
	if m.boundariesErr != nil {
		return nil, m.boundariesErr
	}
	return m.boundaries, nil
}

func (m *mockCatalog) Granules(_ context.Context, dataset string, _ domain.TimeWindow, _ []string) ([]domain.Granule, error) {
	m.granuleCalls = append(m.granuleCalls, dataset)
	if m.granulesErr != nil {
		return nil, m.granulesErr
	}
	return m.granules[dataset], nil
}

type mockExporter struct {
	requests []domain.ExportRequest
	err      error
}

func (m *mockExporter) Export(_ context.Context, req domain.ExportRequest) error {
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, req)
	return nil
}

type mockChartSink struct {
	charts []domain.ChartSpec
	table  []domain.TimeSeriesPoint
}

func (m *mockChartSink) WriteChart(spec domain.ChartSpec) error { m.charts = append(m.charts, spec); return nil }
func (m *mockChartSink) WriteSeriesTable(points []domain.TimeSeriesPoint) error {
	m.table = points
	return nil
}

type mockMapSink struct {
	layers   []domain.MapLayer
	outlines []*domain.Region
	flushed  bool
}

func (m *mockMapSink) AddLayer(layer domain.MapLayer) error { m.layers = append(m.layers, layer); return nil }
func (m *mockMapSink) AddOutline(region *domain.Region) error {
	m.outlines = append(m.outlines, region)
	return nil
}
func (m *mockMapSink) Flush() error { m.flushed = true; return nil }

type mockPublisher struct {
	points []domain.TimeSeriesPoint
}

func (m *mockPublisher) PublishSeries(_ context.Context, points []domain.TimeSeriesPoint) error {
	m.points = points
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unitBoundaries is a single square biome covering [0,1]x[0,1].
func unitBoundaries(name string) *geojson.FeatureCollection {
	feature := geojson.NewFeature(geojson.NewPolygonGeometry([][][]float64{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}))
	feature.SetProperty("BIOME", name)
	fc := geojson.NewFeatureCollection()
	fc.AddFeature(feature)
	return fc
}

var unitGrid = domain.Grid{Rows: 1, Cols: 1, West: 0, North: 1, CellSize: 1}

func unitRaster(t *testing.T, v float64) domain.Raster {
	t.Helper()
	raster, err := domain.NewRaster(unitGrid, []float64{v})
	require.NoError(t, err)
	return raster
}

func day(n int) time.Time {
	return time.Date(2010, 1, n, 0, 0, 0, 0, time.UTC)
}

// lstGranule holds day-band DN and a clear-sky QC for one day.
func lstGranule(t *testing.T, n int, dn float64) domain.Granule {
	t.Helper()
	return domain.Granule{
		Start: day(n).Add(10*time.Hour + 30*time.Minute),
		End:   day(n + 1),
		Bands: map[string]domain.Raster{
			domain.BandLSTDay: unitRaster(t, dn),
			domain.BandQCDay:  unitRaster(t, 0),
		},
	}
}

func reanGranule(t *testing.T, n int, kelvin float64) domain.Granule {
	t.Helper()
	return domain.Granule{
		Start: day(n),
		End:   day(n + 1),
		Bands: map[string]domain.Raster{
			domain.VarReanalysisMean: unitRaster(t, kelvin),
			domain.VarReanalysisMin:  unitRaster(t, kelvin),
			domain.VarReanalysisMax:  unitRaster(t, kelvin),
		},
	}
}

func testParams() Params {
	return Params{
		RegionName:        "Pantanal",
		BoundaryDataset:   testBoundaryDataset,
		BoundaryField:     "BIOME",
		LSTDataset:        testLSTDataset,
		ReanalysisDataset: testReanDataset,
		Window: domain.TimeWindow{
			Start: day(1),
			End:   day(31),
		},
		Alpha:       0.6,
		ScaleMeters: 111320,
		CRS:         "EPSG:4326",
		MaxPixels:   1e13,
	}
}

func threeDayCatalog(t *testing.T) *mockCatalog {
	t.Helper()
	return &mockCatalog{
		boundaries: unitBoundaries("Pantanal"),
		granules: map[string][]domain.Granule{
			testLSTDataset: {
				lstGranule(t, 1, 7500),
				lstGranule(t, 2, 7600),
				lstGranule(t, 3, 7700),
			},
			testReanDataset: {
				reanGranule(t, 1, 303.15),
				reanGranule(t, 2, 304.15),
				reanGranule(t, 3, 305.15),
			},
		},
	}
}

func TestRun_ThreeDayWindow(t *testing.T) {
	catalog := threeDayCatalog(t)
	exporter := &mockExporter{}
	charts := &mockChartSink{}
	maps := &mockMapSink{}
	publisher := &mockPublisher{}

	p := New(catalog, exporter, charts, maps, publisher, testLogger(), observability.NewMetricsForTesting(), testParams())
	require.NoError(t, p.Run(context.Background()))

	// One chart per output variable, mean first.
	require.Len(t, charts.charts, 3)
	meanChart := charts.charts[0]
	assert.Equal(t, "mean", meanChart.Reducer)
	assert.Equal(t, "Pantanal", meanChart.Region)
	require.Len(t, meanChart.Points, 3)
	assert.InDelta(t, -31.26, meanChart.Points[0].Value, 1e-9)
	assert.InDelta(t, -29.86, meanChart.Points[1].Value, 1e-9)
	assert.InDelta(t, -28.46, meanChart.Points[2].Value, 1e-9)
	assert.Equal(t, day(1), meanChart.Points[0].Date)

	// Series table and publisher both see all nine points.
	assert.Len(t, charts.table, 9)
	assert.Len(t, publisher.points, 9)

	// Three exports named per variable and window.
	require.Len(t, exporter.requests, 3)
	names := make([]string, 0, 3)
	for _, req := range exporter.requests {
		names = append(names, req.Name)
	}
	assert.Contains(t, names, "MeanAirTemp_Pantanal_2010-01")
	assert.Contains(t, names, "MinAirTemp_Pantanal_2010-01")
	assert.Contains(t, names, "MaxAirTemp_Pantanal_2010-01")

	// Window composites: mean of means, min of mins, max of maxes.
	for _, req := range exporter.requests {
		v, ok := req.Observation.Raster.Sample(0.5, 0.5)
		require.True(t, ok)
		switch req.Observation.Variable {
		case domain.VarAirTempMean:
			assert.InDelta(t, -29.86, v, 1e-9)
		case domain.VarAirTempMin:
			assert.InDelta(t, -31.26, v, 1e-9)
		case domain.VarAirTempMax:
			assert.InDelta(t, -28.46, v, 1e-9)
		}
	}

	// Map sink got three layers plus the outline and was flushed.
	assert.Len(t, maps.layers, 3)
	require.Len(t, maps.outlines, 1)
	assert.Equal(t, "Pantanal", maps.outlines[0].Name)
	assert.True(t, maps.flushed)
}

func TestRun_MissingReanalysisDateFails(t *testing.T) {
	catalog := threeDayCatalog(t)
	catalog.granules[testReanDataset] = catalog.granules[testReanDataset][:2]

	p := New(catalog, &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())
	err := p.Run(context.Background())

	var matchErr *domain.NoCalibrationMatchError
	require.ErrorAs(t, err, &matchErr)
	assert.Equal(t, day(3), matchErr.Date)
}

func TestRun_RegionNotFound(t *testing.T) {
	catalog := threeDayCatalog(t)
	catalog.boundaries = geojson.NewFeatureCollection()

	p := New(catalog, &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())
	err := p.Run(context.Background())

	var notFound *domain.RegionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Pantanal", notFound.Name)
}

func TestRun_EmptySatelliteWindowFails(t *testing.T) {
	catalog := threeDayCatalog(t)
	catalog.granules[testLSTDataset] = nil

	p := New(catalog, &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())
	err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract stage")
}

func TestRun_ExportFailureAborts(t *testing.T) {
	catalog := threeDayCatalog(t)
	exporter := &mockExporter{err: errors.New("disk full")}
	maps := &mockMapSink{}

	p := New(catalog, exporter, &mockChartSink{}, maps, nil, testLogger(), observability.NewMetricsForTesting(), testParams())
	err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "report stage")
	assert.False(t, maps.flushed)
}

func TestRun_FullyCloudedDayFailsSeries(t *testing.T) {
	catalog := threeDayCatalog(t)
	// Day 2 fully cloud-contaminated: QC bit 2 set.
	catalog.granules[testLSTDataset][1].Bands[domain.BandQCDay] = unitRaster(t, 4)

	exporter := &mockExporter{}
	p := New(catalog, exporter, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())
	err := p.Run(context.Background())

	// The lone cell of day 2 is NaN, so its regional mean has no valid
	// pixels and the series reduction fails loud.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid")
}

func TestCheckReadiness(t *testing.T) {
	catalog := threeDayCatalog(t)
	p := New(catalog, &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRunStatus(t *testing.T) {
	p := New(threeDayCatalog(t), &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), observability.NewMetricsForTesting(), testParams())

	status := p.RunStatus()
	assert.Equal(t, "Pantanal", status.Region)
	assert.Equal(t, "pending", status.Stage)
	assert.InDelta(t, 0.6, status.Alpha, 1e-9)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, "done", p.RunStatus().Stage)
}

func TestCalibrate_Metrics(t *testing.T) {
	catalog := threeDayCatalog(t)
	metrics := observability.NewMetricsForTesting()

	p := New(catalog, &mockExporter{}, &mockChartSink{}, &mockMapSink{}, nil, testLogger(), metrics, testParams())
	require.NoError(t, p.Run(context.Background()))

	// 3 days x 3 variables.
	assert.InDelta(t, 9, testutil.ToFloat64(metrics.CalibrationsComputed), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.ObservationsExtracted), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.CalibrationErrors), 1e-9)
}
