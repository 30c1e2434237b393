package model

import (
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultBatchSize is the number of users one batch covers.
const DefaultBatchSize = 50

type User struct {
	ID        int       `json:"id" gorm:"column:id;primaryKey"`
	Name      string    `json:"name" gorm:"column:name"`
	Email     string    `json:"email" gorm:"column:email;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// RecommendationBatch is one bookkeeping row. Rows are owned by the
// initializer until they leave the pending state.
type RecommendationBatch struct {
	BatchID int    `json:"batch_id" gorm:"column:batch_id;primaryKey;autoIncrement:false"`
	Status  string `json:"status" gorm:"column:status"`
}

// BatchProgress summarizes recommendation_batches by status.
type BatchProgress struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (User) TableName() string {
	return "users"
}

func (RecommendationBatch) TableName() string {
	return "recommendation_batches"
}

// TotalBatches returns ceil(userCount / batchSize). Non-positive inputs yield 0.
func TotalBatches(userCount int64, batchSize int) int {
	if userCount <= 0 || batchSize <= 0 {
		return 0
	}
	return int((userCount + int64(batchSize) - 1) / int64(batchSize))
}

// PendingBatches builds rows 0..total-1, all pending.
func PendingBatches(total int) []RecommendationBatch {
	if total <= 0 {
		return nil
	}
	batches := make([]RecommendationBatch, 0, total)
	for i := 0; i < total; i++ {
		batches = append(batches, RecommendationBatch{
			BatchID: i,
			Status:  StatusPending,
		})
	}
	return batches
}

// Add folds one status count into the summary. Unknown statuses only count toward Total.
func (p *BatchProgress) Add(status string, count int64) {
	p.Total += count
	switch status {
	case StatusPending:
		p.Pending += count
	case StatusProcessing:
		p.Processing += count
	case StatusCompleted:
		p.Completed += count
	case StatusFailed:
		p.Failed += count
	}
}
