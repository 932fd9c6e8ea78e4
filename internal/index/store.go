package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DefaultSlowQueryThreshold is the duration after which a statement is
// logged as slow.
const DefaultSlowQueryThreshold = time.Second

// GetLogger returns the index module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("index")
}

// Config selects and locates the index database.
type Config struct {
	Driver string // sqlite (default) or mysql
	Path   string // sqlite database file
	DSN    string // mysql data source name
}

// Store is the gorm-backed dataset index and run history.
type Store struct {
	db     *gorm.DB
	driver string
	log    logger.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	if log == nil {
		log = GetLogger()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var dialector gorm.Dialector
	var target string
	switch driver {
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, configError(fmt.Errorf("sqlite index requires a database path"), driver)
		}
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(err).
					Component("index").
					Category(errors.CategoryFileIO).
					Context("path", cfg.Path).
					Build()
			}
		}
		dialector = sqlite.Open(cfg.Path)
		target = cfg.Path
	case DriverMySQL:
		if cfg.DSN == "" {
			return nil, configError(fmt.Errorf("mysql index requires a dsn"), driver)
		}
		dialector = mysql.Open(cfg.DSN)
		target = "mysql"
	default:
		return nil, configError(fmt.Errorf("unsupported index driver %q", cfg.Driver), driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newSQLLogger(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		log.Error("failed to open index database",
			logger.String("driver", driver),
			logger.Error(err))
		return nil, dbError(err, "open", driver)
	}

	if err := db.AutoMigrate(&Dataset{}, &Run{}); err != nil {
		return nil, dbError(err, "migrate", driver)
	}
	log.Debug("index database ready",
		logger.String("driver", driver),
		logger.String("target", target))
	return &Store{db: db, driver: driver, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close", s.driver)
	}
	return sqlDB.Close()
}

// Upsert inserts a dataset or replaces the row with the same path.
func (s *Store) Upsert(ctx context.Context, d *Dataset) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	}).Create(d).Error
	if err != nil {
		return dbError(err, "upsert", s.driver)
	}
	return nil
}

// Query returns datasets of product within [startYear, endYear] whose
// EPSG:4326 extent intersects lonlat, ordered by year then path.
func (s *Store) Query(ctx context.Context, product string, startYear, endYear int, lonlat orb.Bound) ([]Dataset, error) {
	var out []Dataset
	err := s.db.WithContext(ctx).
		Where("product = ? AND year BETWEEN ? AND ?", product, startYear, endYear).
		Where("east >= ? AND west <= ? AND north >= ? AND south <= ?",
			lonlat.Min[0], lonlat.Max[0], lonlat.Min[1], lonlat.Max[1]).
		Order("year, path").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "query", s.driver)
	}
	return out, nil
}

// List returns every dataset, optionally filtered by product.
func (s *Store) List(ctx context.Context, product string) ([]Dataset, error) {
	q := s.db.WithContext(ctx).Order("product, year, path")
	if product != "" {
		q = q.Where("product = ?", product)
	}
	var out []Dataset
	if err := q.Find(&out).Error; err != nil {
		return nil, dbError(err, "list", s.driver)
	}
	return out, nil
}

// Remove deletes the row for path, returning whether one existed.
func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	res := s.db.WithContext(ctx).Where("path = ?", path).Delete(&Dataset{})
	if res.Error != nil {
		return false, dbError(res.Error, "remove", s.driver)
	}
	return res.RowsAffected > 0, nil
}

// RecordRun appends a run history row.
func (s *Store) RecordRun(ctx context.Context, r *Run) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return dbError(err, "record_run", s.driver)
	}
	return nil
}

// Runs returns the most recent run rows, newest first. limit <= 0 returns
// all rows.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Run
	if err := q.Find(&out).Error; err != nil {
		return nil, dbError(err, "runs", s.driver)
	}
	return out, nil
}

func dbError(err error, op, driver string) error {
	return errors.New(err).
		Component("index").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("driver", driver).
		Build()
}

func configError(err error, driver string) error {
	return errors.New(err).
		Component("index").
		Category(errors.CategoryConfiguration).
		Context("driver", driver).
		Build()
}
