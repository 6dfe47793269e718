package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheet/internal/aggregate"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2018, 1, 15, 7, 0, 0, 0, time.UTC) }
	return s
}

func weekRecord(day int, acc aggregate.Accumulator) aggregate.WeeklyRecord {
	start := time.Date(2018, 1, day, 0, 0, 0, 0, time.UTC)
	return aggregate.NewWeeklyRecord(aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)}, acc)
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var acc aggregate.Accumulator
	acc = acc.Add(aggregate.ProjectWork, 10*time.Hour).Add(aggregate.OtherMeetings, 90*time.Minute).Add(aggregate.Unclassified, time.Hour)
	require.NoError(t, s.Save(ctx, weekRecord(8, acc)))

	got, err := s.Get(ctx, "2018-01-08")
	require.NoError(t, err)
	assert.Equal(t, "2018-01-08", got.Record.Key())
	assert.Equal(t, 10*time.Hour, got.Record.Totals.Total(aggregate.ProjectWork))
	assert.Equal(t, 90*time.Minute, got.Record.Totals.Total(aggregate.OtherMeetings))
	assert.Equal(t, time.Hour, got.Record.Totals.Total(aggregate.Unclassified))
	assert.Equal(t, 11*time.Hour+30*time.Minute, got.Record.WeeklyTotal())
	assert.True(t, time.Date(2018, 1, 15, 7, 0, 0, 0, time.UTC).Equal(got.RecordedAt))
}

func TestSaveReplacesWeek(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var first, second aggregate.Accumulator
	first = first.Add(aggregate.ProjectWork, time.Hour).Add(aggregate.Transformation, time.Hour)
	second = second.Add(aggregate.ProjectWork, 3*time.Hour)
	require.NoError(t, s.Save(ctx, weekRecord(8, first)))
	require.NoError(t, s.Save(ctx, weekRecord(8, second)))

	got, err := s.Get(ctx, "2018-01-08")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, got.Record.Totals.Total(aggregate.ProjectWork))
	assert.Zero(t, got.Record.Totals.Total(aggregate.Transformation))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var acc aggregate.Accumulator
	acc = acc.Add(aggregate.ProjectWork, time.Hour)
	for _, day := range []int{1, 15, 8} {
		require.NoError(t, s.Save(ctx, weekRecord(day, acc)))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2018-01-15", all[0].Record.Key())
	assert.Equal(t, "2018-01-08", all[1].Record.Key())
	assert.Equal(t, "2018-01-01", all[2].Record.Key())
}

func TestGetUnknownWeek(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "2000-01-03")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEmpty(t *testing.T) {
	s := newStore(t)
	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
