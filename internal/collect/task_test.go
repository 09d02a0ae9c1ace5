package collect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/extract"
	"github.com/sells-group/nyc311-cli/internal/model"
)

// countingFetcher serves fixed records and counts calls per day.
type countingFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	records []model.Record
	fail    map[string]error
	delay   time.Duration
	total   atomic.Int32
}

func newCountingFetcher(records ...model.Record) *countingFetcher {
	return &countingFetcher{calls: map[string]int{}, fail: map[string]error{}, records: records}
}

func (f *countingFetcher) FetchDay(ctx context.Context, _ string, day time.Time) ([]model.Record, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.calls[model.FormatDay(day)]++
	err := f.fail[model.FormatDay(day)]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *countingFetcher) callsFor(day time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model.FormatDay(day)]
}

func d(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func newTask(t *testing.T, f DayFetcher) (*Task, *extract.Store) {
	t.Helper()
	store := extract.NewStore(artifact.NewFS(t.TempDir()), "311")
	return NewTask(f, store, "erm2-nwe9"), store
}

func TestTask_FetchesThenSkips(t *testing.T) {
	ctx := context.Background()
	f := newCountingFetcher(model.Record{"unique_key": "1", "complaint_type": "Noise"})
	task, store := newTask(t, f)

	out, err := task.Run(ctx, d(5))
	require.NoError(t, err)
	assert.Equal(t, Fetched, out)

	out, err = task.Run(ctx, d(5))
	require.NoError(t, err)
	assert.Equal(t, Skipped, out)

	assert.Equal(t, 1, f.callsFor(d(5)), "second run must not fetch")

	records, err := store.Read(ctx, d(5))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTask_EmptyDayIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newCountingFetcher()
	task, store := newTask(t, f)

	out, err := task.Run(ctx, d(6))
	require.NoError(t, err)
	assert.Equal(t, Fetched, out)

	ok, err := store.Exists(ctx, d(6))
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = task.Run(ctx, d(6))
	require.NoError(t, err)
	assert.Equal(t, Skipped, out)
	assert.Equal(t, 1, f.callsFor(d(6)))
}

func TestTask_FetchFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newCountingFetcher()
	f.fail["2024-01-07"] = errors.New("upstream 503")
	task, store := newTask(t, f)

	_, err := task.Run(ctx, d(7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 503")

	ok, err := store.Exists(ctx, d(7))
	require.NoError(t, err)
	assert.False(t, ok)

	// The day stays pending, so a later run fetches again.
	delete(f.fail, "2024-01-07")
	out, err := task.Run(ctx, d(7))
	require.NoError(t, err)
	assert.Equal(t, Fetched, out)
	assert.Equal(t, 2, f.callsFor(d(7)))
}

func TestTask_ConcurrentSameDayFetchesOnce(t *testing.T) {
	ctx := context.Background()
	f := newCountingFetcher(model.Record{"unique_key": "1"})
	f.delay = 50 * time.Millisecond
	task, _ := newTask(t, f)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := task.Run(ctx, d(8))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.callsFor(d(8)))
}

func TestTask_TruncatesToDay(t *testing.T) {
	ctx := context.Background()
	f := newCountingFetcher()
	task, store := newTask(t, f)

	_, err := task.Run(ctx, time.Date(2024, 1, 9, 17, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, d(9))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "fetched", Fetched.String())
	assert.Equal(t, "skipped", Skipped.String())
}
