package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reco-batch/src/lock"
	"reco-batch/src/model"
	"reco-batch/src/store"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore follows the same clear, count, insert order as the gorm store and
// keeps the previous rows when a step fails.
type memStore struct {
	users   int64
	rows    []model.RecommendationBatch
	failAt  string
	calls   []string
	inserts int
}

func (m *memStore) RebuildBatches(ctx context.Context, plan store.PlanFunc) ([]model.RecommendationBatch, int64, error) {
	m.calls = append(m.calls, "clear")
	if m.failAt == "clear" {
		return nil, 0, errors.New("failed to clear batches: connection refused")
	}
	m.calls = append(m.calls, "count")
	if m.failAt == "count" {
		return nil, 0, errors.New("failed to count users: timeout")
	}
	batches := plan(m.users)
	if len(batches) == 0 {
		m.rows = nil
		return nil, m.users, nil
	}
	m.calls = append(m.calls, "insert")
	if m.failAt == "insert" {
		return nil, 0, errors.New("failed to insert batches: duplicate key")
	}
	m.inserts++
	m.rows = append([]model.RecommendationBatch(nil), batches...)
	return batches, m.users, nil
}

type fakeLocker struct {
	held     bool
	err      error
	acquired int
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.held {
		return "", lock.ErrHeld
	}
	f.acquired++
	return "token", nil
}

func (f *fakeLocker) Release(ctx context.Context, token string) error {
	f.released = append(f.released, token)
	return nil
}

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []int
}

func (f *fakeDispatcher) Dispatch(batchID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, batchID)
}

func newInitializer(s *memStore, l *fakeLocker, d *fakeDispatcher) *Initializer {
	log, _ := test.NewNullLogger()
	return NewInitializer(s, l, d, model.DefaultBatchSize, log)
}

func TestRunCreatesDenseBatches(t *testing.T) {
	for _, tc := range []struct {
		users int64
		want  int
	}{
		{1, 1},
		{50, 1},
		{51, 2},
		{120, 3},
		{2500, 50},
	} {
		s := &memStore{users: tc.users}
		d := &fakeDispatcher{}
		result, err := newInitializer(s, &fakeLocker{}, d).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, tc.want, result.TotalBatches, "users=%d", tc.users)
		assert.Equal(t, tc.users, result.UserCount)
		assert.True(t, result.Triggered)
		require.Len(t, s.rows, tc.want)
		for i, row := range s.rows {
			assert.Equal(t, i, row.BatchID)
			assert.Equal(t, model.StatusPending, row.Status)
		}
		assert.Equal(t, []int{0}, d.ids)
	}
}

func TestRunNoUsers(t *testing.T) {
	s := &memStore{rows: model.PendingBatches(4)}
	d := &fakeDispatcher{}

	result, err := newInitializer(s, &fakeLocker{}, d).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.TotalBatches)
	assert.False(t, result.Triggered)
	assert.Empty(t, s.rows)
	assert.Equal(t, 0, s.inserts)
	assert.Empty(t, d.ids)
}

func TestRunTwiceLeavesSameRows(t *testing.T) {
	s := &memStore{users: 120}
	in := newInitializer(s, &fakeLocker{}, &fakeDispatcher{})

	_, err := in.Run(context.Background())
	require.NoError(t, err)
	first := append([]model.RecommendationBatch(nil), s.rows...)

	_, err = in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, s.rows)
}

func TestRunStoreFailure(t *testing.T) {
	for _, step := range []string{"clear", "count", "insert"} {
		t.Run(step, func(t *testing.T) {
			s := &memStore{users: 10, failAt: step}
			l := &fakeLocker{}
			d := &fakeDispatcher{}

			_, err := newInitializer(s, l, d).Run(context.Background())
			require.Error(t, err)

			assert.Equal(t, 0, s.inserts)
			assert.Empty(t, d.ids)
			assert.Equal(t, []string{"token"}, l.released)
		})
	}
}

func TestRunClearFailureNeverInserts(t *testing.T) {
	s := &memStore{users: 10, failAt: "clear"}

	_, err := newInitializer(s, &fakeLocker{}, &fakeDispatcher{}).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"clear"}, s.calls)
}

func TestRunAlreadyRunning(t *testing.T) {
	s := &memStore{users: 10}
	l := &fakeLocker{held: true}

	_, err := newInitializer(s, l, &fakeDispatcher{}).Run(context.Background())

	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, s.calls)
	assert.Empty(t, l.released)
}

func TestRunLockBackendFailure(t *testing.T) {
	s := &memStore{users: 10}
	l := &fakeLocker{err: errors.New("failed to acquire lock: dial tcp: refused")}

	_, err := newInitializer(s, l, &fakeDispatcher{}).Run(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, s.calls)
}
