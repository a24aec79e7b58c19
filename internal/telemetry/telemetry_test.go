package telemetry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCounters_RecordAndSnapshot(t *testing.T) {
	c := NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("article", "indexed")
		}()
	}
	wg.Wait()
	c.Record("article", "failed")

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap["article"]["indexed"])
	assert.Equal(t, int64(1), snap["article"]["failed"])
}

func TestCounters_DrainResetsPendingOnly(t *testing.T) {
	c := NewCounters()
	c.Record("article", "deleted")

	d := c.Drain()
	assert.Equal(t, int64(1), d[Key{"article", "deleted"}])
	assert.Nil(t, c.Drain())

	assert.Equal(t, int64(1), c.Snapshot()["article"]["deleted"])
}

func TestCounters_FlushAccumulatesPerDay(t *testing.T) {
	s := openTestStore(t)
	c := NewCounters()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Record("article", "indexed")
	c.Record("article", "indexed")
	require.NoError(t, c.Flush(s, day))

	c.Record("article", "indexed")
	c.Record("recipe", "skipped_unpublished")
	require.NoError(t, c.Flush(s, day))
	require.NoError(t, c.Flush(s, day.AddDate(0, 0, 1)))

	rows, err := s.DailyTotals("2026-03-01", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, []DailyTotal{
		{Date: "2026-03-01", Collection: "article", Outcome: "indexed", Count: 3},
		{Date: "2026-03-01", Collection: "recipe", Outcome: "skipped_unpublished", Count: 1},
	}, rows)
}

func TestCounters_FlushFailureKeepsPending(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	c := NewCounters()
	c.Record("article", "failed")

	require.Error(t, c.Flush(s, time.Now()))
	assert.Equal(t, int64(1), c.Drain()[Key{"article", "failed"}])
}

func TestStore_DailyTotalsRange(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveCounts("2026-01-01", map[Key]int64{{"a", "indexed"}: 1}))
	require.NoError(t, s.SaveCounts("2026-01-05", map[Key]int64{{"a", "indexed"}: 2}))
	require.NoError(t, s.SaveCounts("2026-02-01", map[Key]int64{{"a", "indexed"}: 4}))

	rows, err := s.DailyTotals("2026-01-01", "2026-01-31")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-01-05", rows[1].Date)
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[Key]int64{
		{"b", "indexed"}: 1,
		{"a", "failed"}:  1,
		{"a", "deleted"}: 1,
	})
	assert.Equal(t, []Key{{"a", "deleted"}, {"a", "failed"}, {"b", "indexed"}}, keys)
}
