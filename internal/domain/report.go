package domain

// Palette is a display ramp for a map layer.
type Palette struct {
	Colors []string `json:"colors"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

// MapLayer is one visualization layer handed to the map sink.
type MapLayer struct {
	Name        string
	Observation Observation
	Palette     Palette
}

// ChartStyle carries the presentation options of a time-series chart.
type ChartStyle struct {
	Colors    []string `json:"colors,omitempty"`
	LineWidth int      `json:"lineWidth,omitempty"`
	PointSize int      `json:"pointSize,omitempty"`
}

// ChartSpec describes one chart rendering: a regional time series plus the
// reduction parameters that produced it.
type ChartSpec struct {
	Title       string            `json:"title"`
	Region      string            `json:"region"`
	Reducer     string            `json:"reducer"`
	ScaleMeters float64           `json:"scale_m"`
	XField      string            `json:"x_field"`
	Style       ChartStyle        `json:"style"`
	Points      []TimeSeriesPoint `json:"points"`
}

// ExportRequest describes one raster export.
type ExportRequest struct {
	Observation Observation
	Name        string
	Folder      string
	Region      *Region
	ScaleMeters float64
	CRS         string
	MaxPixels   int64
}
