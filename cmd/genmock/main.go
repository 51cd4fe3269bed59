// Command genmock generates a synthetic catalog fixture: one boundary
// collection plus daily satellite and reanalysis granules on a shared grid.
// It can also serve the fixture over the catalog HTTP API so a calibration
// run works without any real data service.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 31
//	go run ./cmd/genmock -out data/mock -serve :8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

const (
	boundaryDataset   = "MapBiomas/biomes-2019"
	lstDataset        = "MODIS/061/MOD11A1"
	reanalysisDataset = "ECMWF/ERA5/DAILY"
	regionName        = "Pantanal"
)

// fixtureGrid approximates the Pantanal bounding box at a coarse cell size.
var fixtureGrid = domain.Grid{Rows: 8, Cols: 8, West: -59.5, North: -15.5, CellSize: 0.5}

var windowStart = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// Wire shapes of the catalog API.
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

type granuleResponse struct {
	Granules []granulePayload `json:"granules"`
}

type fixture struct {
	boundaries *geojson.FeatureCollection
	granules   map[string][]granulePayload
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/mock", "output directory for fixture files")
	days := flag.Int("days", 31, "number of daily granules to generate")
	seed := flag.Int64("seed", 20100101, "random seed for field texture")
	serve := flag.String("serve", "", "if set, serve the fixture over the catalog API on this address")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be at least 1, got %d", *days)
	}

	fix := generate(*days, *seed)

	if err := writeFixture(*outDir, fix); err != nil {
		return err
	}
	log.Printf("wrote fixture: %s (%d days)", *outDir, *days)

	if *serve != "" {
		log.Printf("serving catalog API on %s", *serve)
		return http.ListenAndServe(*serve, newHandler(fix))
	}
	return nil
}

// generate builds the boundary feature and the two daily granule sets. The
// satellite fields carry a west-east warm gradient plus day-to-day drift;
// a few cells per day get the cloud QC bit so quality masking has work to do.
func generate(days int, seed int64) *fixture {
	rng := rand.New(rand.NewSource(seed))

	fix := &fixture{
		boundaries: boundaryCollection(),
		granules:   map[string][]granulePayload{},
	}

	cells := fixtureGrid.Rows * fixtureGrid.Cols
	for day := 0; day < days; day++ {
		start := windowStart.AddDate(0, 0, day)
		end := start.AddDate(0, 0, 1)

		// Daily mean air temperature drifts around 30C.
		baseC := 30.0 + 2.0*math.Sin(float64(day)/5.0)

		lstDN := make([]float64, cells)
		qc := make([]float64, cells)
		meanK := make([]float64, cells)
		minK := make([]float64, cells)
		maxK := make([]float64, cells)
		for i := range lstDN {
			col := i % fixtureGrid.Cols
			gradient := 1.5 * float64(col) / float64(fixtureGrid.Cols)
			noise := rng.NormFloat64() * 0.4

			surfaceC := baseC + 4.0 + gradient + noise
			lstDN[i] = math.Round((surfaceC + domain.KelvinOffset) / domain.LSTScaleFactor)
			if rng.Float64() < 0.05 {
				qc[i] = 1 << domain.CloudQualityBit
			}

			airC := baseC + gradient + noise*0.5
			meanK[i] = airC + domain.KelvinOffset
			minK[i] = airC - 6.0 + domain.KelvinOffset
			maxK[i] = airC + 6.0 + domain.KelvinOffset
		}

		fix.granules[lstDataset] = append(fix.granules[lstDataset], granulePayload{
			TimeStart: start.UnixMilli(),
			TimeEnd:   end.UnixMilli(),
			Grid:      payloadGrid(),
			Bands: map[string][]float64{
				domain.BandLSTDay: lstDN,
				domain.BandQCDay:  qc,
			},
		})
		fix.granules[reanalysisDataset] = append(fix.granules[reanalysisDataset], granulePayload{
			TimeStart: start.UnixMilli(),
			TimeEnd:   end.UnixMilli(),
			Grid:      payloadGrid(),
			Bands: map[string][]float64{
				domain.VarReanalysisMean: meanK,
				domain.VarReanalysisMin:  minK,
				domain.VarReanalysisMax:  maxK,
			},
		})
	}
	return fix
}

func payloadGrid() gridPayload {
	return gridPayload{
		Rows:     fixtureGrid.Rows,
		Cols:     fixtureGrid.Cols,
		West:     fixtureGrid.West,
		North:    fixtureGrid.North,
		CellSize: fixtureGrid.CellSize,
	}
}

func boundaryCollection() *geojson.FeatureCollection {
	east := fixtureGrid.West + float64(fixtureGrid.Cols)*fixtureGrid.CellSize
	south := fixtureGrid.North - float64(fixtureGrid.Rows)*fixtureGrid.CellSize
	// Inset so boundary cells fall outside the region and clipping is visible.
	inset := fixtureGrid.CellSize * 0.6

	feature := geojson.NewFeature(geojson.NewPolygonGeometry([][][]float64{{
		{fixtureGrid.West + inset, south + inset},
		{east - inset, south + inset},
		{east - inset, fixtureGrid.North - inset},
		{fixtureGrid.West + inset, fixtureGrid.North - inset},
		{fixtureGrid.West + inset, south + inset},
	}}))
	feature.SetProperty("BIOME", regionName)

	fc := geojson.NewFeatureCollection()
	fc.AddFeature(feature)
	return fc
}

func writeFixture(dir string, fix *fixture) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	boundaries, err := fix.boundaries.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal boundaries: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "boundaries.geojson"), boundaries, 0o644); err != nil {
		return err
	}

	for dataset, granules := range fix.granules {
		name := strings.ReplaceAll(dataset, "/", "_") + "_granules.json"
		data, err := json.MarshalIndent(granuleResponse{Granules: granules}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s granules: %w", dataset, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// newHandler serves the fixture with the catalog API routes.
func newHandler(fix *fixture) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /datasets/{dataset}/features", func(w http.ResponseWriter, r *http.Request) {
		fc := geojson.NewFeatureCollection()
		if r.PathValue("dataset") == boundaryDataset &&
			r.URL.Query().Get("field") == "BIOME" &&
			r.URL.Query().Get("value") == regionName {
			fc = fix.boundaries
		}
		writeResponse(w, fc)
	})

	mux.HandleFunc("GET /datasets/{dataset}/granules", func(w http.ResponseWriter, r *http.Request) {
		granules, ok := fix.granules[r.PathValue("dataset")]
		if !ok {
			writeResponse(w, granuleResponse{Granules: []granulePayload{}})
			return
		}
		start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
		if err != nil {
			http.Error(w, "invalid end", http.StatusBadRequest)
			return
		}

		bands := map[string]bool{}
		for _, b := range strings.Split(r.URL.Query().Get("bands"), ",") {
			if b != "" {
				bands[b] = true
			}
		}

		var selected []granulePayload
		for _, g := range granules {
			// End date is inclusive, matching the run window semantics.
			if g.TimeStart < start.UnixMilli() || g.TimeStart >= end.AddDate(0, 0, 1).UnixMilli() {
				continue
			}
			subset := granulePayload{
				TimeStart: g.TimeStart,
				TimeEnd:   g.TimeEnd,
				Grid:      g.Grid,
				Bands:     map[string][]float64{},
			}
			for name, values := range g.Bands {
				if len(bands) == 0 || bands[name] {
					subset.Bands[name] = values
				}
			}
			selected = append(selected, subset)
		}
		writeResponse(w, granuleResponse{Granules: selected})
	})

	return mux
}

func writeResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
