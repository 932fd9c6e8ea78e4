// Package boundary fetches Australian state outlines from OpenStreetMap via
// the Overpass API and writes them as GeoJSON boundary files.
package boundary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/serjvanilla/go-overpass"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// Defaults for the public Overpass instance.
const (
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"
	DefaultTimeout  = 180 * time.Second
	maxParallel     = 2
)

// States maps lower-case state codes to ISO 3166-2 subdivision codes.
var States = map[string]string{
	"act": "AU-ACT",
	"nsw": "AU-NSW",
	"nt":  "AU-NT",
	"qld": "AU-QLD",
	"sa":  "AU-SA",
	"tas": "AU-TAS",
	"vic": "AU-VIC",
	"wa":  "AU-WA",
}

// ErrUnknownState is returned for codes missing from States.
var ErrUnknownState = errors.NewStd("unknown state code")

// GetLogger returns the boundary module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("boundary")
}

// StateCodes returns the known state codes, sorted.
func StateCodes() []string {
	codes := make([]string, 0, len(States))
	for c := range States {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// querier runs an Overpass QL query. *overpass.Client implements it.
type querier interface {
	Query(query string) (overpass.Result, error)
}

// Fetcher downloads state boundaries.
type Fetcher struct {
	client querier
	log    logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher creates a fetcher for endpoint. A nil httpClient gets one with
// the given timeout.
func NewFetcher(endpoint string, timeout time.Duration, httpClient *http.Client, opts ...Option) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	client := overpass.NewWithSettings(endpoint, maxParallel, httpClient)
	return newFetcher(&client, opts...)
}

func newFetcher(q querier, opts ...Option) *Fetcher {
	f := &Fetcher{client: q}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = GetLogger()
	}
	return f
}

// Query returns the Overpass QL selecting a state's admin_level=4 relation
// with its member ways and nodes.
func Query(iso string, timeout time.Duration) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
relation["boundary"="administrative"]["admin_level"="4"]["ISO3166-2"=%q];
out body;
>;
out skel qt;`, int(timeout.Seconds()), iso)
}

// Fetch downloads and assembles the outline of state.
func (f *Fetcher) Fetch(ctx context.Context, state string) (orb.MultiPolygon, error) {
	code := strings.ToLower(state)
	iso, ok := States[code]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnknownState, state)).
			Component("boundary").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := f.log.With(logger.String("state", code), logger.String("iso", iso))
	start := time.Now()
	res, err := f.client.Query(Query(iso, DefaultTimeout))
	if err != nil {
		return nil, errors.New(err).
			Component("boundary").
			Category(errors.CategoryNetwork).
			Context("state", code).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := findRelation(res, iso)
	if rel == nil {
		return nil, errors.Newf("no boundary relation for %s", iso).
			Component("boundary").
			Category(errors.CategoryNotFound).
			Context("state", code).
			Build()
	}
	mp, dropped := assemble(rel)
	if len(mp) == 0 {
		return nil, errors.Newf("boundary relation %d has no closed outer ring", rel.ID).
			Component("boundary").
			Category(errors.CategoryGeometry).
			Context("state", code).
			Build()
	}
	if dropped > 0 {
		log.Warn("dropped unclosed boundary segments", logger.Int("segments", dropped))
	}
	log.Info("boundary fetched",
		logger.Int("polygons", len(mp)),
		logger.Duration("elapsed", time.Since(start)))
	return mp, nil
}

func findRelation(res overpass.Result, iso string) *overpass.Relation {
	var found *overpass.Relation
	for _, rel := range res.Relations {
		if rel.Tags["ISO3166-2"] != iso {
			continue
		}
		// deterministic pick if the query matched more than one
		if found == nil || rel.ID < found.ID {
			found = rel
		}
	}
	return found
}

// Write stores the outline as a GeoJSON FeatureCollection in EPSG:4326.
func Write(path, state string, mp orb.MultiPolygon) error {
	code := strings.ToLower(state)
	feat := geojson.NewFeature(mp)
	feat.Properties["state"] = code
	feat.Properties["iso3166_2"] = States[code]
	feat.Properties["source"] = "OpenStreetMap contributors"
	fc := geojson.NewFeatureCollection().Append(feat)

	data, err := fc.MarshalJSON()
	if err != nil {
		return errors.New(err).
			Component("boundary").
			Category(errors.CategoryGeometry).
			Context("state", code).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileError(err, path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fileError(err, path)
	}
	return nil
}

// DefaultPath is where a state's boundary is written when no AOI path is
// configured for it.
func DefaultPath(dir, state string) string {
	return filepath.Join(dir, strings.ToLower(state)+".geojson")
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("boundary").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
