package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalBatches(t *testing.T) {
	cases := []struct {
		users int64
		want  int
	}{
		{0, 0},
		{-3, 0},
		{1, 1},
		{49, 1},
		{50, 1},
		{51, 2},
		{100, 2},
		{120, 3},
		{1001, 21},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TotalBatches(c.users, DefaultBatchSize), "users=%d", c.users)
	}
}

func TestTotalBatchesInvalidSize(t *testing.T) {
	assert.Equal(t, 0, TotalBatches(10, 0))
}

func TestPendingBatchesAreDense(t *testing.T) {
	batches := PendingBatches(3)
	assert.Equal(t, []RecommendationBatch{
		{BatchID: 0, Status: StatusPending},
		{BatchID: 1, Status: StatusPending},
		{BatchID: 2, Status: StatusPending},
	}, batches)

	assert.Nil(t, PendingBatches(0))
}

func TestBatchProgressAdd(t *testing.T) {
	var p BatchProgress
	p.Add(StatusPending, 2)
	p.Add(StatusCompleted, 5)
	p.Add("archived", 1)

	assert.Equal(t, BatchProgress{Total: 8, Pending: 2, Completed: 5}, p)
}
