package aggregate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cubematch/telemetry/pkg/db/aggregate"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

// memPersister is an in-memory Persister for tests.
type memPersister struct {
	mu    sync.Mutex
	rows  map[string]telemetry.AggregateRow
	saves int
	// failures makes the next N saves fail to exercise retry behavior.
	failures int
}

func newMemPersister() *memPersister {
	return &memPersister{rows: make(map[string]telemetry.AggregateRow)}
}

func (m *memPersister) LoadRow(_ context.Context, userID string) (*telemetry.AggregateRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memPersister) SaveRow(_ context.Context, row telemetry.AggregateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("simulated storage outage")
	}
	m.rows[row.UserID] = row
	m.saves++
	return nil
}

func (m *memPersister) Close() error { return nil }

func record(userID string, score uint64, op telemetry.Operator) *telemetry.RoundRecord {
	return &telemetry.RoundRecord{
		ID:        "rec-" + userID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Score:     score,
		Level:     3,
		ElapsedMs: 45000,
		Operator:  op,
		ComboMax:  4,
	}
}

func TestApplyAccumulates(t *testing.T) {
	store := aggregate.New(zaptest.NewLogger(t), newMemPersister())
	ctx := context.Background()

	scores := []uint64{200, 450, 900}
	var row telemetry.AggregateRow
	var err error
	for _, sc := range scores {
		row, err = store.Apply(ctx, record("u1", sc, telemetry.OperatorAdd))
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(3), row.TotalGames)
	assert.Equal(t, uint64(900), row.BestScore)
	assert.Equal(t, uint64(1550), row.CumulativeScore)
	assert.Equal(t, telemetry.OperatorAdd, row.FavoriteOperator)
	assert.InDelta(t, 516.66, row.AverageScore(), 0.01)
}

func TestBestScoreNeverDecreases(t *testing.T) {
	store := aggregate.New(zaptest.NewLogger(t), newMemPersister())
	ctx := context.Background()

	_, err := store.Apply(ctx, record("u1", 900, telemetry.OperatorMul))
	require.NoError(t, err)

	row, err := store.Apply(ctx, record("u1", 100, telemetry.OperatorDiv))
	require.NoError(t, err)

	assert.Equal(t, uint64(900), row.BestScore)
	assert.Equal(t, telemetry.OperatorDiv, row.FavoriteOperator, "favorite operator is last write wins")
}

func TestApplySerializesPerUser(t *testing.T) {
	store := aggregate.New(zaptest.NewLogger(t), newMemPersister())
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Apply(ctx, record("u1", uint64(i), telemetry.OperatorAdd))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	row, found, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(n), row.TotalGames, "no lost updates under concurrency")
	assert.Equal(t, uint64(n-1), row.BestScore)
}

func TestApplyParallelAcrossUsers(t *testing.T) {
	store := aggregate.New(zaptest.NewLogger(t), newMemPersister())
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4"}
	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(u string, i int) {
				defer wg.Done()
				_, err := store.Apply(ctx, record(u, uint64(i), telemetry.OperatorSub))
				assert.NoError(t, err)
			}(u, i)
		}
	}
	wg.Wait()

	for _, u := range users {
		row, found, err := store.Get(ctx, u)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint64(50), row.TotalGames)
	}
}

func TestApplyRetriesTransientSaves(t *testing.T) {
	p := newMemPersister()
	p.failures = 2
	store := aggregate.New(zaptest.NewLogger(t), p)

	row, err := store.Apply(context.Background(), record("u1", 300, telemetry.OperatorAdd))
	require.NoError(t, err, "apply should survive transient save failures")
	assert.Equal(t, uint64(1), row.TotalGames)
}

func TestApplyHydratesFromPersister(t *testing.T) {
	p := newMemPersister()
	p.rows["u1"] = telemetry.AggregateRow{
		UserID:          "u1",
		TotalGames:      10,
		CumulativeScore: 5000,
		BestScore:       800,
		HighestLevel:    7,
	}

	store := aggregate.New(zaptest.NewLogger(t), p)
	row, err := store.Apply(context.Background(), record("u1", 900, telemetry.OperatorAdd))
	require.NoError(t, err)

	assert.Equal(t, uint64(11), row.TotalGames)
	assert.Equal(t, uint64(900), row.BestScore)
	assert.Equal(t, uint64(5900), row.CumulativeScore)
	assert.Equal(t, uint32(7), row.HighestLevel)
}

func TestGetUnknownUser(t *testing.T) {
	store := aggregate.New(zaptest.NewLogger(t), newMemPersister())

	_, found, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}
