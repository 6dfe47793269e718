package csvlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheet/internal/aggregate"
)

func record(t *testing.T, day int, pw time.Duration) aggregate.WeeklyRecord {
	t.Helper()
	start := time.Date(2018, 1, day, 0, 0, 0, 0, time.UTC)
	var acc aggregate.Accumulator
	acc = acc.Add(aggregate.ProjectWork, pw).Add(aggregate.Unclassified, time.Hour)
	return aggregate.NewWeeklyRecord(aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)}, acc)
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "summary.csv")

	require.NoError(t, Append(path, record(t, 1, 2*time.Hour)))
	require.NoError(t, Append(path, record(t, 8, 26*time.Hour+3*time.Minute+4*time.Second)))

	header, rows, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, aggregate.Header(), header)
	require.Len(t, rows, 2)

	assert.Equal(t, "2018-01-01", rows[0][0])
	assert.Equal(t, "2018-01-08", rows[1][0])

	last := rows[1]
	assert.Equal(t, "1 days 02:03:04", last[len(last)-2])
	assert.True(t, strings.HasPrefix(last[len(last)-1], "26.05"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm()&0o644)
}

func TestAppendToEmptyFileWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, Append(path, record(t, 1, time.Hour)))
	header, rows, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, aggregate.Header(), header)
	assert.Len(t, rows, 1)
}

func TestAppendHeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	original := "week_start,Something Else\n2017-12-25,1\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	err := Append(path, record(t, 1, time.Hour))
	assert.ErrorIs(t, err, ErrHeaderMismatch)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(b), "nothing is written on mismatch")
}

func TestAppendAcceptsUnnamedIndexColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	legacy := append([]string{""}, aggregate.Header()[1:]...)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(legacy, ",")+"\n"), 0o644))

	require.NoError(t, Append(path, record(t, 1, time.Hour)))
	_, rows, err := ReadAll(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
