// Package catalog talks to the raster catalog service: the boundary dataset,
// the LST imagery source, and the reanalysis source behind one query API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
	"github.com/couchcryptid/airtemp-calibration/internal/observability"
)

// Client queries the raster catalog HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a catalog client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Boundaries fetches the boundary features of a dataset whose attribute
// field equals value.
func (c *Client) Boundaries(ctx context.Context, dataset, field, value string) (*geojson.FeatureCollection, error) {
	params := url.Values{
		"field": {field},
		"value": {value},
	}
	u := fmt.Sprintf("%s/datasets/%s/features?%s", c.baseURL, url.PathEscape(dataset), params.Encode())

	body, err := c.doRequest(ctx, u, "boundaries")
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("boundaries", "error").Inc()
		return nil, fmt.Errorf("decode boundary features: %w", err)
	}
	c.observeOutcome("boundaries", len(fc.Features))
	c.logger.Debug("boundary features fetched", "dataset", dataset, "field", field, "value", value, "features", len(fc.Features))
	return fc, nil
}

// Granules fetches the time-ordered granules of a dataset inside the window,
// restricted to the requested bands.
func (c *Client) Granules(ctx context.Context, dataset string, window domain.TimeWindow, bands []string) ([]domain.Granule, error) {
	params := url.Values{
		"start": {window.Start.UTC().Format("2006-01-02")},
		"end":   {window.End.UTC().Format("2006-01-02")},
		"bands": {strings.Join(bands, ",")},
	}
	u := fmt.Sprintf("%s/datasets/%s/granules?%s", c.baseURL, url.PathEscape(dataset), params.Encode())

	body, err := c.doRequest(ctx, u, "granules")
	if err != nil {
		return nil, err
	}

	var resp granuleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.CatalogRequests.WithLabelValues("granules", "error").Inc()
		return nil, fmt.Errorf("decode granules: %w", err)
	}

	granules := make([]domain.Granule, 0, len(resp.Granules))
	for _, g := range resp.Granules {
		granule, err := g.toDomain()
		if err != nil {
			c.metrics.CatalogRequests.WithLabelValues("granules", "error").Inc()
			return nil, fmt.Errorf("granule at %d: %w", g.TimeStart, err)
		}
		granules = append(granules, granule)
	}
	c.observeOutcome("granules", len(granules))
	c.logger.Debug("granules fetched", "dataset", dataset, "granules", len(granules), "bands", bands)
	return granules, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, query string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CatalogAPIDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues(query, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues(query, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", query, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.CatalogRequests.WithLabelValues(query, "error").Inc()
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) observeOutcome(query string, results int) {
	outcome := "success"
	if results == 0 {
		outcome = "empty"
	}
	c.metrics.CatalogRequests.WithLabelValues(query, outcome).Inc()
}

// granuleResponse mirrors the catalog granule listing payload. Timestamps use
// the imagery convention of epoch milliseconds under system:time_start and
// system:time_end.
type granuleResponse struct {
	Granules []granulePayload `json:"granules"`
}

type granulePayload struct {
	TimeStart int64                `json:"system:time_start"`
	TimeEnd   int64                `json:"system:time_end"`
	Grid      gridPayload          `json:"grid"`
	Bands     map[string][]float64 `json:"bands"`
}

type gridPayload struct {
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	West     float64 `json:"west"`
	North    float64 `json:"north"`
	CellSize float64 `json:"cell_size"`
}

func (g granulePayload) toDomain() (domain.Granule, error) {
	grid := domain.Grid{
		Rows:     g.Grid.Rows,
		Cols:     g.Grid.Cols,
		West:     g.Grid.West,
		North:    g.Grid.North,
		CellSize: g.Grid.CellSize,
	}
	bands := make(map[string]domain.Raster, len(g.Bands))
	for name, values := range g.Bands {
		raster, err := domain.NewRaster(grid, values)
		if err != nil {
			return domain.Granule{}, fmt.Errorf("band %s: %w", name, err)
		}
		bands[name] = raster
	}
	return domain.Granule{
		Start: time.UnixMilli(g.TimeStart).UTC(),
		End:   time.UnixMilli(g.TimeEnd).UTC(),
		Bands: bands,
	}, nil
}
