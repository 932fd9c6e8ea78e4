package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/httpclient"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
	"github.com/aus-land-clearing/landcover/internal/privacy"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Catalog defaults.
const (
	DefaultSTACLimit       = 100
	DefaultSTACRateLimit   = 5.0
	DefaultSTACCacheTTL    = time.Hour
	DefaultSTACConcurrency = 4
	maxSearchPages         = 20
)

// STACConfig configures the catalog strategy.
type STACConfig struct {
	CatalogURL             string
	Collection             string
	Asset                  string // asset key; empty picks the first GeoTIFF asset
	Limit                  int
	RateLimit              float64 // searches per second
	CacheTTL               time.Duration
	MaxConcurrentDownloads int
}

// ItemCollection is a STAC search response page.
type ItemCollection struct {
	Type     string `json:"type"`
	Features []Item `json:"features"`
	Links    []Link `json:"links,omitempty"`
}

// Item is a STAC item.
type Item struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection,omitempty"`
	BBox       []float64        `json:"bbox,omitempty"`
	Properties ItemProperties   `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// ItemProperties holds the item fields used for year matching.
type ItemProperties struct {
	Datetime      string `json:"datetime,omitempty"`
	StartDatetime string `json:"start_datetime,omitempty"`
	EndDatetime   string `json:"end_datetime,omitempty"`
}

// Asset is a downloadable file of an item.
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Link is a STAC link; the "next" link paginates searches.
type Link struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// searchBody is the POST /search request.
type searchBody struct {
	Collections []string   `json:"collections"`
	BBox        [4]float64 `json:"bbox"`
	Datetime    string     `json:"datetime"`
	Limit       int        `json:"limit"`
}

// STAC fetches land-cover items from a STAC API catalog.
type STAC struct {
	cfg     STACConfig
	client  *httpclient.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	guard   *MemoryGuard
	metrics *metrics.SourceMetrics
	log     logger.Logger
}

// STACOption configures the catalog strategy.
type STACOption func(*STAC)

// WithSTACGuard sets the memory guard.
func WithSTACGuard(g *MemoryGuard) STACOption {
	return func(s *STAC) { s.guard = g }
}

// WithSTACMetrics records cache and download metrics.
func WithSTACMetrics(m *metrics.SourceMetrics) STACOption {
	return func(s *STAC) { s.metrics = m }
}

// WithSTACLogger injects a logger.
func WithSTACLogger(l logger.Logger) STACOption {
	return func(s *STAC) { s.log = l }
}

// NewSTAC creates the catalog strategy. client may be nil.
func NewSTAC(cfg STACConfig, client *httpclient.Client, opts ...STACOption) (*STAC, error) {
	if cfg.CatalogURL == "" {
		return nil, errors.Newf("stac catalog url is required").
			Component("source").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Collection == "" {
		return nil, errors.Newf("stac collection is required").
			Component("source").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSTACLimit
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultSTACRateLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultSTACCacheTTL
	}
	if cfg.MaxConcurrentDownloads <= 0 {
		cfg.MaxConcurrentDownloads = DefaultSTACConcurrency
	}
	cfg.CatalogURL = strings.TrimRight(cfg.CatalogURL, "/")
	if client == nil {
		client = httpclient.New(nil)
	}

	s := &STAC{
		cfg:     cfg,
		client:  client,
		cache:   cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	return s, nil
}

func (s *STAC) Name() string { return "stac" }

func (s *STAC) Capability() Capability { return CapabilityReal }

// Fetch searches each year, downloads matching assets and mosaics them onto
// the target grid. Years without items are left as nodata; no items for any
// year makes the strategy unavailable.
func (s *STAC) Fetch(ctx context.Context, req Request) (*raster.Dataset, error) {
	grid, err := targetGrid(req)
	if err != nil {
		return nil, err
	}
	years := req.Years()
	if err := s.guard.Check(int64(len(years)) * int64(grid.Cells())); err != nil {
		return nil, err
	}
	lonlat, err := req.AOI.BoundsIn(geo.WGS84)
	if err != nil {
		return nil, err
	}
	log := s.log.With(logger.String("state", req.State), logger.String("strategy", s.Name()))

	planes := make([]raster.Array, 0, len(years))
	var missing []int
	for _, year := range years {
		items, err := s.Search(ctx, lonlat, year)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			log.Warn("no catalog items for year", logger.Int("year", year))
			planes = append(planes, emptyPlane(grid))
			missing = append(missing, year)
			continue
		}
		tiles, err := s.download(ctx, items, req.CRS)
		if err != nil {
			return nil, err
		}
		plane, filled, err := mosaic(grid, req.CRS, tiles, DefaultNodata)
		if err != nil {
			return nil, err
		}
		if filled == 0 {
			log.Warn("catalog items do not cover the area for year", logger.Int("year", year))
			planes = append(planes, plane)
			missing = append(missing, year)
			continue
		}
		log.Debug("mosaicked catalog items",
			logger.Int("year", year),
			logger.Int("items", len(items)),
			logger.Int("cells_filled", filled))
		planes = append(planes, plane)
	}
	if len(missing) == len(years) {
		return nil, unavailable(s.Name(), "no catalog items for any requested year")
	}
	return stackDataset(req, grid, planes, s.Name(), missing, raster.Attrs{"catalog": s.cfg.CatalogURL})
}

// Search returns the items of the configured collection intersecting bbox
// during year. Results are cached per collection, bbox and year.
func (s *STAC) Search(ctx context.Context, bbox orb.Bound, year int) ([]Item, error) {
	body := searchBody{
		Collections: []string{s.cfg.Collection},
		BBox:        [4]float64{bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1]},
		Datetime:    fmt.Sprintf("%04d-01-01T00:00:00Z/%04d-12-31T23:59:59Z", year, year),
		Limit:       s.cfg.Limit,
	}
	key := fmt.Sprintf("%s|%v|%s", s.cfg.Collection, body.BBox, body.Datetime)
	if cached, ok := s.cache.Get(key); ok {
		if items, ok := cached.([]Item); ok {
			s.metrics.IncrementCacheHits()
			return items, nil
		}
	}
	s.metrics.IncrementCacheMisses()

	var items []Item
	url := s.cfg.CatalogURL + "/search"
	var payload any = body
	for page := 0; page < maxSearchPages && url != ""; page++ {
		ic, err := s.searchPage(ctx, url, payload)
		if err != nil {
			return nil, err
		}
		items = append(items, ic.Features...)
		url, payload = "", nil
		for _, l := range ic.Links {
			if l.Rel == "next" && l.Href != "" {
				url = l.Href
				payload = body
				if len(l.Body) > 0 {
					payload = []byte(l.Body)
				}
				break
			}
		}
	}

	s.cache.Set(key, items, cache.DefaultExpiration)
	return items, nil
}

func (s *STAC) searchPage(ctx context.Context, url string, payload any) (*ItemCollection, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, url, "application/json", payload)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryNetwork).
			Context("url", url).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("catalog search returned %s: %s", resp.Status, strings.TrimSpace(string(snippet))).
			Component("source").
			Category(errors.CategoryHTTP).
			Context("url", url).
			Context("status", resp.StatusCode).
			Build()
	}
	var ic ItemCollection
	if err := json.NewDecoder(resp.Body).Decode(&ic); err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryFileParsing).
			Context("url", url).
			Build()
	}
	return &ic, nil
}

// assetHref picks the asset to download from an item.
func (s *STAC) assetHref(it Item) (string, bool) {
	if s.cfg.Asset != "" {
		a, ok := it.Assets[s.cfg.Asset]
		return a.Href, ok && a.Href != ""
	}
	for _, k := range slices.Sorted(maps.Keys(it.Assets)) {
		a := it.Assets[k]
		if strings.Contains(a.Type, "geotiff") || strings.HasSuffix(strings.ToLower(a.Href), ".tif") {
			return a.Href, true
		}
	}
	return "", false
}

// download fetches and decodes item assets concurrently. The returned tiles
// keep item order.
func (s *STAC) download(ctx context.Context, items []Item, fallback geo.CRS) ([]tile, error) {
	tiles := make([]tile, len(items))
	present := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentDownloads)
	for i, it := range items {
		href, ok := s.assetHref(it)
		if !ok {
			s.log.Warn("catalog item has no usable asset", logger.String("item", it.ID))
			continue
		}
		g.Go(func() error {
			start := time.Now()
			data, err := s.fetchAsset(gctx, href)
			s.metrics.RecordDownload(int64(len(data)), time.Since(start).Seconds(), err)
			if err != nil {
				return err
			}
			r, err := geotiff.Decode(data)
			if err != nil {
				return errors.New(err).
					Component("source").
					Category(errors.CategoryFileParsing).
					Context("url", privacy.RedactURL(href)).
					Build()
			}
			t, err := tileFromRaster(r, fallback)
			if err != nil {
				return err
			}
			tiles[i], present[i] = t, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]tile, 0, len(tiles))
	for i, t := range tiles {
		if present[i] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *STAC) fetchAsset(ctx context.Context, href string) ([]byte, error) {
	resp, err := s.client.Get(ctx, href)
	if err != nil {
		// url.Error repeats the full href
		return nil, errors.New(privacy.WrapError(err)).
			Component("source").
			Category(errors.CategoryNetwork).
			Context("url", privacy.RedactURL(href)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("asset download returned %s", resp.Status).
			Component("source").
			Category(errors.CategoryHTTP).
			Context("url", privacy.RedactURL(href)).
			Context("status", resp.StatusCode).
			Build()
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryNetwork).
			Context("url", privacy.RedactURL(href)).
			Build()
	}
	return data, nil
}

func emptyPlane(grid raster.Grid) raster.Array {
	a := raster.NewArray(grid.Height, grid.Width)
	for i := range a.Values {
		a.Values[i] = DefaultNodata
	}
	return a
}
