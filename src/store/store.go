package store

import (
	"context"
	"fmt"
	"time"

	"reco-batch/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// noBatchID never matches a real batch; it lets the clear step delete every row
// while still carrying a WHERE clause.
const noBatchID = -1

// MaxInsertRows caps rows per INSERT. Postgres takes at most 65535 bind
// parameters per statement and each batch row binds two.
const MaxInsertRows = 10000

// PlanFunc turns the current user count into the rows to insert.
type PlanFunc func(userCount int64) []model.RecommendationBatch

type Store struct {
	db  *gorm.DB
	log *logrus.Logger
}

// Open connects to postgres with gorm's logger at the given level.
func Open(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func New(db *gorm.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log}
}

// RebuildBatches clears recommendation_batches, counts users and inserts the
// planned rows, in that order and inside one transaction. It returns the
// inserted rows and the user count. Nothing is inserted when plan returns no rows.
func (s *Store) RebuildBatches(ctx context.Context, plan PlanFunc) ([]model.RecommendationBatch, int64, error) {
	var (
		batches   []model.RecommendationBatch
		userCount int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start := time.Now()
		result := tx.Where("batch_id <> ?", noBatchID).Delete(&model.RecommendationBatch{})
		if result.Error != nil {
			return fmt.Errorf("failed to clear batches: %w", result.Error)
		}
		s.log.WithFields(logrus.Fields{
			"step":     "clear",
			"rows":     result.RowsAffected,
			"duration": time.Since(start),
		}).Info("Cleared previous batches")

		start = time.Now()
		if err := tx.Model(&model.User{}).Count(&userCount).Error; err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		s.log.WithFields(logrus.Fields{
			"step":     "count",
			"users":    userCount,
			"duration": time.Since(start),
		}).Info("Counted users")

		batches = plan(userCount)
		if len(batches) == 0 {
			return nil
		}

		start = time.Now()
		for i := 0; i < len(batches); i += MaxInsertRows {
			end := i + MaxInsertRows
			if end > len(batches) {
				end = len(batches)
			}
			chunk := batches[i:end]
			if err := tx.Create(&chunk).Error; err != nil {
				return fmt.Errorf("failed to insert batches: %w", err)
			}
		}
		s.log.WithFields(logrus.Fields{
			"step":     "insert",
			"rows":     len(batches),
			"duration": time.Since(start),
		}).Info("Inserted pending batches")

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return batches, userCount, nil
}

// Progress groups recommendation_batches by status.
func (s *Store) Progress(ctx context.Context) (*model.BatchProgress, error) {
	var rows []struct {
		Status string
		Count  int64
	}

	err := s.db.WithContext(ctx).
		Model(&model.RecommendationBatch{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get batch stats: %w", err)
	}

	progress := &model.BatchProgress{}
	for _, row := range rows {
		progress.Add(row.Status, row.Count)
	}
	return progress, nil
}
