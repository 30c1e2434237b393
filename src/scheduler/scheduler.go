package scheduler

import (
	"context"
	"errors"
	"time"

	"reco-batch/src/lock"
	"reco-batch/src/model"
	"reco-batch/src/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning means another initialization holds the run lock.
var ErrAlreadyRunning = errors.New("initialization already running")

type BatchStore interface {
	RebuildBatches(ctx context.Context, plan store.PlanFunc) ([]model.RecommendationBatch, int64, error)
}

type Locker interface {
	Acquire(ctx context.Context) (string, error)
	Release(ctx context.Context, token string) error
}

type Dispatcher interface {
	Dispatch(batchID int)
}

// Result describes one completed initialization. TotalBatches is zero and
// Triggered false when there were no users.
type Result struct {
	RunID        string
	UserCount    int64
	TotalBatches int
	Triggered    bool
}

type Initializer struct {
	store      BatchStore
	locker     Locker
	dispatcher Dispatcher
	batchSize  int
	log        *logrus.Logger
}

func NewInitializer(store BatchStore, locker Locker, dispatcher Dispatcher, batchSize int, log *logrus.Logger) *Initializer {
	if batchSize <= 0 {
		batchSize = model.DefaultBatchSize
	}
	return &Initializer{
		store:      store,
		locker:     locker,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		log:        log,
	}
}

// Run replaces every bookkeeping row with a fresh pending set covering all
// users and hands batch 0 to the dispatcher.
func (in *Initializer) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	runLog := in.log.WithField("run_id", runID)
	start := time.Now()

	token, err := in.locker.Acquire(ctx)
	if errors.Is(err, lock.ErrHeld) {
		runLog.Warn("Initialization already running, skipping")
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		// The request context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := in.locker.Release(releaseCtx, token); err != nil {
			runLog.WithError(err).Warn("Failed to release init lock")
		}
	}()

	batches, userCount, err := in.store.RebuildBatches(ctx, in.plan)
	if err != nil {
		runLog.WithError(err).Error("Batch initialization failed")
		return nil, err
	}

	result := &Result{
		RunID:        runID,
		UserCount:    userCount,
		TotalBatches: len(batches),
	}

	if result.TotalBatches == 0 {
		runLog.WithField("duration", time.Since(start)).Info("No users to process")
		return result, nil
	}

	in.dispatcher.Dispatch(batches[0].BatchID)
	result.Triggered = true

	runLog.WithFields(logrus.Fields{
		"users":         userCount,
		"total_batches": result.TotalBatches,
		"duration":      time.Since(start),
	}).Info("Initialized recommendation batches")

	return result, nil
}

func (in *Initializer) plan(userCount int64) []model.RecommendationBatch {
	return model.PendingBatches(model.TotalBatches(userCount, in.batchSize))
}
