// Package store is the append-only trade ledger and reflection archive,
// backed by a single sqlite file in WAL mode.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voyant/internal/logger"
)

// ErrLedgerWrite marks a failed append. It is the one cycle-fatal error in
// the loop: a cycle whose record cannot be persisted must not pass silently.
var ErrLedgerWrite = errors.New("ledger write failed")

type Store struct {
	db *gorm.DB
}

// Open creates the parent directory, opens the sqlite file in WAL mode and
// migrates the schema. The pool is capped at two connections, enough for the
// scheduler plus the HTTP read path without write contention.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(2)

	if err := db.AutoMigrate(&TradeRecordModel{}, &ReflectionModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	logger.Infof("store: sqlite ready at %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendTrade inserts one ledger row. Callers never update rows afterwards.
func (s *Store) AppendTrade(ctx context.Context, rec *TradeRecordModel) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("%w: trade record: %v", ErrLedgerWrite, err)
	}
	return nil
}

func (s *Store) AppendReflection(ctx context.Context, ref *ReflectionModel) error {
	if err := s.db.WithContext(ctx).Create(ref).Error; err != nil {
		return fmt.Errorf("%w: reflection: %v", ErrLedgerWrite, err)
	}
	return nil
}

// TradesInRange returns ledger rows with start <= timestamp < end, oldest
// first, the order the reflection generator replays them in.
func (s *Store) TradesInRange(ctx context.Context, start, end time.Time) ([]TradeRecordModel, error) {
	var out []TradeRecordModel
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query trades in range: %w", err)
	}
	return out, nil
}

// RecentTrades returns the newest rows first.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]TradeRecordModel, error) {
	var out []TradeRecordModel
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	return out, nil
}

func (s *Store) RecentReflections(ctx context.Context, limit int) ([]ReflectionModel, error) {
	var out []ReflectionModel
	err := s.db.WithContext(ctx).
		Order("window_end DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query recent reflections: %w", err)
	}
	return out, nil
}

// LastReflectionEnd reports the end of the newest reflection window, so a
// restart does not re-review days it already covered. Returns zero time when
// no reflection exists yet.
func (s *Store) LastReflectionEnd(ctx context.Context) (time.Time, error) {
	var ref ReflectionModel
	err := s.db.WithContext(ctx).Order("window_end DESC").First(&ref).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last reflection: %w", err)
	}
	return ref.WindowEnd, nil
}
