package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"timesheet/internal/config"
	"timesheet/internal/csvlog"
)

const weekICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//timesheet//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:a\r\nSUMMARY:PW: build\r\nDTSTART:20180108T090000Z\r\nDTEND:20180108T113000Z\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:b\r\nSUMMARY:lunch\r\nDTSTART:20180109T120000Z\r\nDTEND:20180109T130000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fixture struct {
	dir     string
	cfgPath string
	csvPath string
}

func newFixture(t *testing.T, withHistory bool) fixture {
	t.Helper()
	dir := t.TempDir()
	icsPath := filepath.Join(dir, "cal.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(weekICS), 0o600))

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CSVPath = filepath.Join(dir, "summary.csv")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ICS = []config.ICSConfig{{ID: "local", URL: icsPath}}
	cfg.Exchange.Email = "me@corp.example"
	if withHistory {
		cfg.HistoryDB = filepath.Join(dir, "history.db")
	}
	cfgPath := filepath.Join(dir, "timesheet.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	for _, k := range []string{config.EnvCSV, config.EnvSource, config.EnvTimezone} {
		t.Setenv(k, "")
	}
	return fixture{dir: dir, cfgPath: cfgPath, csvPath: cfg.CSVPath}
}

func (f fixture) exec(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	full := append([]string{"--config", f.cfgPath, "--env-file", filepath.Join(f.dir, "none.env")}, args...)
	root.SetArgs(full)
	err := root.Execute()
	return out.String(), err
}

func TestWithDefaultCommand(t *testing.T) {
	root := NewRootCmd()
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{"run"}},
		{[]string{"--dry-run"}, []string{"run", "--dry-run"}},
		{[]string{"history"}, []string{"history"}},
		{[]string{"auth", "google"}, []string{"auth", "google"}},
		{[]string{"--help"}, []string{"--help"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, withDefaultCommand(root, tc.in), "%v", tc.in)
	}
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t, false)

	out, err := f.exec(t, "", "run", "--date", "2018-01-15", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Week of 2018-01-08")
	assert.Contains(t, out, "Weekly total: 0 days 02:30:00 (2.50 h)")
	assert.Contains(t, out, "1 unclassified event(s)")
	assert.Contains(t, out, "Dry run")

	_, err = os.Stat(f.csvPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunWritesCSVAndHistory(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.exec(t, "", "run", "--date", "2018-01-15")
	require.NoError(t, err)

	header, rows, err := csvlog.ReadAll(f.csvPath)
	require.NoError(t, err)
	assert.Equal(t, "week_start", header[0])
	require.Len(t, rows, 1)
	assert.Equal(t, "2.5", rows[0][len(rows[0])-1])

	out, err := f.exec(t, "", "history", "--json")
	require.NoError(t, err)
	var weeks []struct {
		WeekStart   string  `json:"week_start"`
		WeeklyHours float64 `json:"weekly_hours"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &weeks))
	require.Len(t, weeks, 1)
	assert.Equal(t, "2018-01-08", weeks[0].WeekStart)
	assert.Equal(t, 2.5, weeks[0].WeeklyHours)
}

func TestHistoryFallsBackToCSV(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.exec(t, "", "run", "--date", "2018-01-15")
	require.NoError(t, err)

	out, err := f.exec(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "1 week(s)")
	assert.Contains(t, out, "2018-01-08")
}

func TestRunRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.exec(t, "", "run", "--date", "15/01/2018", "--dry-run")
	assert.ErrorContains(t, err, "--date")

	_, err = f.exec(t, "", "run", "--source", "outlook", "--dry-run")
	assert.ErrorContains(t, err, "invalid source")
}

func TestAuthExchangeStoresPassword(t *testing.T) {
	keyring.MockInit()
	f := newFixture(t, false)

	out, err := f.exec(t, "hunter2\n", "auth", "exchange")
	require.NoError(t, err)
	assert.Contains(t, out, "saved in keyring")

	pw, err := keyring.Get("ExchangeCalShopDirect", "me@corp.example")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	_, err = f.exec(t, "\n", "auth", "exchange")
	assert.ErrorContains(t, err, "empty password")
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	f := newFixture(t, false)
	out, err := f.exec(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "timesheet version 1.2.3\n", out)
}
