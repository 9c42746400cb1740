// Package store is the node-local record store: a per-node SQLite file
// holding the data_records table. Handoffs during membership changes rely
// on its fetch-and-delete calls being transactional.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DmMeta/ChordSeek/internal/chord"
	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// Config holds configuration for the record store.
type Config struct {
	// Dir is the directory the database file lives in.
	Dir string `env:"DATA_DIR" env-default:"./Data"`
}

// dataRecord is the persisted form of chord.Record.
type dataRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Surname   string `gorm:"column:surname"`
	Education string `gorm:"column:education"`
	Awards    int    `gorm:"column:awards"`
	HashValue uint64 `gorm:"column:hash_value;index"`
}

func (dataRecord) TableName() string { return "data_records" }

// Store implements chord.RecordStore on SQLite through gorm.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open creates or reopens the node's database file, named after the node
// address the way the original deployment names one file per container.
func Open(cfg Config, nodeAddr string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", cfg.Dir, err)
	}

	name := strings.NewReplacer(":", "_", "/", "_").Replace(nodeAddr)
	path := filepath.Join(cfg.Dir, name+"_chord.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&dataRecord{}); err != nil {
		return nil, fmt.Errorf("migrating data_records: %w", err)
	}

	log.Debug("record store opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// Store appends records in one transaction.
func (s *Store) Store(ctx context.Context, records []chord.Record) error {
	if len(records) == 0 {
		s.log.Warn("no records to store")
		return nil
	}

	rows := make([]dataRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, dataRecord{
			Surname:   r.Surname,
			Education: r.Education,
			Awards:    r.Awards,
			HashValue: r.Hash,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return apperr.Store(fmt.Sprintf("inserting %d records", len(rows)), err)
	}
	return nil
}

// FetchByCriteria returns the records of one education with at least
// minAwards awards.
func (s *Store) FetchByCriteria(ctx context.Context, education string, minAwards int) ([]chord.Record, error) {
	var rows []dataRecord
	err := s.db.WithContext(ctx).
		Where("education = ? AND awards >= ?", education, minAwards).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store("selecting records", err)
	}
	return toRecords(rows), nil
}

// FetchAndDeleteAll atomically removes and returns every record.
func (s *Store) FetchAndDeleteAll(ctx context.Context) ([]chord.Record, error) {
	var rows []dataRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&dataRecord{}).Error
	})
	if err != nil {
		return nil, apperr.Store("draining records", err)
	}
	return toRecords(rows), nil
}

// FetchAndDeleteArc atomically removes and returns the records whose hash
// lies on the cyclic arc (lo, hi]. Equal bounds denote the empty arc.
func (s *Store) FetchAndDeleteArc(ctx context.Context, lo, hi uint64) ([]chord.Record, error) {
	if lo == hi {
		return nil, nil
	}

	cond := "hash_value > ? AND hash_value <= ?"
	if lo > hi {
		// The arc wraps past the top of the identifier space.
		cond = "hash_value > ? OR hash_value <= ?"
	}

	var rows []dataRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(cond, lo, hi).Find(&rows).Error; err != nil {
			return err
		}
		return tx.Where(cond, lo, hi).Delete(&dataRecord{}).Error
	})
	if err != nil {
		return nil, apperr.Store(fmt.Sprintf("draining records on (%d, %d]", lo, hi), err)
	}
	return toRecords(rows), nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func toRecords(rows []dataRecord) []chord.Record {
	out := make([]chord.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, chord.Record{
			Surname:   r.Surname,
			Education: r.Education,
			Awards:    r.Awards,
			Hash:      r.HashValue,
		})
	}
	return out
}
