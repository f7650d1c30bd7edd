package store

import (
	"fmt"
	"time"

	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/shared/types"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Snapshot is one persisted metrics sample for a target.
type Snapshot struct {
	ID       uint  `gorm:"primaryKey"`
	TargetID int64 `gorm:"index:idx_snapshots_target_taken"`

	CPUPercent    *float64
	MemoryPercent *float64
	MemoryUsedMB  *float64
	MemoryTotalMB *float64
	DiskPercent   *float64
	DiskUsedGB    *float64
	DiskTotalGB   *float64

	TakenAt time.Time `gorm:"index:idx_snapshots_target_taken"`
}

// Store persists metrics snapshots in a local sqlite database.
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open opens (creating if needed) the sqlite database at path and
// migrates the schema.
func Open(path string, log *logging.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Record persists one sample. It is fire and forget: failures are
// logged and swallowed so a storage hiccup never fails the request
// that produced the metrics. Empty samples are skipped.
func (s *Store) Record(targetID int64, m types.Metrics) {
	if m.Empty() {
		return
	}
	snap := Snapshot{
		TargetID:      targetID,
		CPUPercent:    m.CPUPercent,
		MemoryPercent: m.MemoryPercent,
		MemoryUsedMB:  m.MemoryUsedMB,
		MemoryTotalMB: m.MemoryTotalMB,
		DiskPercent:   m.DiskPercent,
		DiskUsedGB:    m.DiskUsedGB,
		DiskTotalGB:   m.DiskTotalGB,
		TakenAt:       time.Now(),
	}
	if err := s.db.Create(&snap).Error; err != nil {
		s.log.Warn("failed to record metrics snapshot",
			zap.Int64("target_id", targetID),
			zap.Error(err))
	}
}

// Recent returns up to limit snapshots for a target, newest first.
func (s *Store) Recent(targetID int64, limit int) ([]Snapshot, error) {
	if limit < 1 {
		limit = 50
	}
	var snaps []Snapshot
	err := s.db.
		Where("target_id = ?", targetID).
		Order("taken_at DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return snaps, nil
}

// Prune deletes snapshots older than the retention window and returns
// how many rows were removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	res := s.db.
		Where("taken_at < ?", time.Now().Add(-olderThan)).
		Delete(&Snapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
