// Package index keeps a database of local GeoTIFF tiles (the local cube)
// and a history of pipeline runs.
package index

import (
	"time"

	"github.com/paulmach/orb"
)

// Dataset is one indexed GeoTIFF tile. Bounds are stored twice: in the
// tile's own CRS for mosaicking and in EPSG:4326 for intersection queries.
type Dataset struct {
	ID        uint   `gorm:"primaryKey"`
	Product   string `gorm:"size:128;not null;index:idx_datasets_product_year"`
	Year      int    `gorm:"not null;index:idx_datasets_product_year"`
	Path      string `gorm:"size:512;not null;uniqueIndex"`
	CRS       string `gorm:"size:32"`
	MinX      float64
	MinY      float64
	MaxX      float64
	MaxY      float64
	West      float64 `gorm:"index:idx_datasets_lonlat"`
	South     float64 `gorm:"index:idx_datasets_lonlat"`
	East      float64
	North     float64
	Width     int
	Height    int
	HasNodata bool
	Nodata    float64
	Size      int64
	ModTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bound returns the tile extent in its own CRS.
func (d *Dataset) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{d.MinX, d.MinY}, Max: orb.Point{d.MaxX, d.MaxY}}
}

// LonLatBound returns the tile extent in EPSG:4326.
func (d *Dataset) LonLatBound() orb.Bound {
	return orb.Bound{Min: orb.Point{d.West, d.South}, Max: orb.Point{d.East, d.North}}
}

// Run records the outcome of one state in one pipeline run.
type Run struct {
	ID               uint   `gorm:"primaryKey"`
	RunID            string `gorm:"size:36;not null;index"`
	State            string `gorm:"size:16;not null;index"`
	StartYear        int
	EndYear          int
	Source           string `gorm:"size:32"`
	Synthetic        bool
	YearsRequested   int
	YearsExported    int
	YearsFailed      int
	YearsSubstituted int
	FinalState       string    `gorm:"size:32"`
	Error            string    `gorm:"type:text"`
	StartedAt        time.Time `gorm:"index"`
	FinishedAt       time.Time
}
