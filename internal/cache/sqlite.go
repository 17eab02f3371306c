package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pwelter/hindcast/internal/core"
)

// seriesRow is the gorm model backing the durable cache. Bars are stored as
// a JSON blob since the cache only ever reads and writes whole series.
type seriesRow struct {
	CacheKey      string `gorm:"primaryKey;column:cache_key"`
	Symbol        string `gorm:"index"`
	Period        string
	Interval      string
	Verdict       string
	CoverageStart time.Time
	CoverageEnd   time.Time
	Bars          []byte
	FetchedAt     time.Time
}

func (seriesRow) TableName() string {
	return "cached_series"
}

// SQLite is a durable store backed by a local sqlite database.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) the database at dsn and migrates the schema.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.AutoMigrate(&seriesRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(key Key) (Entry, error) {
	var row seriesRow
	err := s.db.First(&row, "cache_key = ?", key.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache read: %w", err)
	}

	var bars []core.PriceBar
	if err := json.Unmarshal(row.Bars, &bars); err != nil {
		return Entry{}, fmt.Errorf("cache decode: %w", err)
	}
	return Entry{
		Series: &core.ValidatedSeries{
			Symbol:        row.Symbol,
			Interval:      core.Interval(row.Interval),
			Bars:          bars,
			CoverageStart: row.CoverageStart,
			CoverageEnd:   row.CoverageEnd,
			Verdict:       core.Verdict(row.Verdict),
		},
		FetchedAt: row.FetchedAt,
	}, nil
}

func (s *SQLite) Put(key Key, entry Entry) error {
	bars, err := json.Marshal(entry.Series.Bars)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	row := seriesRow{
		CacheKey:      key.String(),
		Symbol:        entry.Series.Symbol,
		Period:        string(key.Period),
		Interval:      string(entry.Series.Interval),
		Verdict:       string(entry.Series.Verdict),
		CoverageStart: entry.Series.CoverageStart,
		CoverageEnd:   entry.Series.CoverageEnd,
		Bars:          bars,
		FetchedAt:     entry.FetchedAt,
	}
	// Upsert so a stale series is replaced in one statement.
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(key Key) error {
	return s.db.Delete(&seriesRow{}, "cache_key = ?", key.String()).Error
}

func (s *SQLite) Len() (int, error) {
	var count int64
	if err := s.db.Model(&seriesRow{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
