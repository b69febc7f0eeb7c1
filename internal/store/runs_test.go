package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveRun_Monotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	next, err := s.NextRunSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next, "fresh registry starts at 1")

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	const k = 5
	var prev int64
	for i := 0; i < k; i++ {
		run, err := s.ReserveRun(ctx, 42, 10, "out.jsonl")
		require.NoError(t, err)
		assert.Greater(t, run.Serial, prev)
		prev = run.Serial
	}

	next, err = s.NextRunSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1+k), next)

	last, err = s.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, Run{Serial: k, Seed: 42, Count: 10, Output: "out.jsonl"}, *last)
}

func TestReserveRun_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.ReserveRun(ctx, 1, 1, "a")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	run, err := s2.ReserveRun(ctx, 1, 1, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), run.Serial)
}

func TestReserveRun_ConcurrentStoresNeverShareSerial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.db")
	ctx := context.Background()

	// Prime the schema once so concurrent opens don't race on CREATE TABLE
	s0, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s0.Close())

	const workers = 4
	const perWorker = 5

	var (
		mu      sync.Mutex
		serials = make(map[int64]bool)
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Open(path)
			if !assert.NoError(t, err) {
				return
			}
			defer s.Close()
			for i := 0; i < perWorker; i++ {
				run, err := s.ReserveRun(ctx, 0, 0, "")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, serials[run.Serial], "serial %d handed out twice", run.Serial)
				serials[run.Serial] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, serials, workers*perWorker)
}
