package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"timesheet/internal/aggregate"
)

func fakeCalendar(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var pageTokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/work@example.com/events") {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.NotEmpty(t, q.Get("timeMin"))
		assert.NotEmpty(t, q.Get("timeMax"))

		pageTokens = append(pageTokens, q.Get("pageToken"))
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("pageToken") {
		case "":
			_, _ = w.Write([]byte(`{
				"items": [
					{"id": "a", "summary": "PW: build", "status": "confirmed",
					 "start": {"dateTime": "2018-01-08T09:00:00Z"}, "end": {"dateTime": "2018-01-08T10:30:00Z"}},
					{"id": "b", "summary": "OM: gone", "status": "cancelled",
					 "start": {"dateTime": "2018-01-08T11:00:00Z"}, "end": {"dateTime": "2018-01-08T12:00:00Z"}}
				],
				"nextPageToken": "p2"
			}`))
		case "p2":
			_, _ = w.Write([]byte(`{
				"items": [
					{"id": "c", "summary": "AL: leave",
					 "start": {"date": "2018-01-10"}, "end": {"date": "2018-01-11"}}
				]
			}`))
		default:
			t.Errorf("unexpected page token %q", q.Get("pageToken"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &pageTokens
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestListEventsPagesAndConverts(t *testing.T) {
	srv, pages := fakeCalendar(t)
	c := testClient(t, srv)

	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	start := time.Date(2018, 1, 8, 0, 0, 0, 0, loc)
	w := aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)}

	evs, err := c.ListEvents(context.Background(), "work@example.com", w)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "p2"}, *pages)
	require.Len(t, evs, 2)

	assert.Equal(t, "PW: build", evs[0].Title)
	assert.Equal(t, "work@example.com", evs[0].SourceID)
	assert.Equal(t, 90*time.Minute, evs[0].Duration())
	assert.Equal(t, loc, evs[0].Start.Location())
	assert.False(t, evs[0].AllDay)

	assert.Equal(t, "AL: leave", evs[1].Title)
	assert.True(t, evs[1].AllDay)
	assert.True(t, time.Date(2018, 1, 10, 0, 0, 0, 0, loc).Equal(evs[1].Start))
	assert.Equal(t, 24*time.Hour, evs[1].Duration())
}

func TestSourceFetch(t *testing.T) {
	srv, _ := fakeCalendar(t)
	src := NewSource(testClient(t, srv), "work@example.com")
	assert.Equal(t, "google", src.Name())

	start := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)
	evs, err := src.Fetch(context.Background(), aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func TestListEventsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	start := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)
	_, err := testClient(t, srv).ListEvents(context.Background(), "primary", aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)})
	assert.Error(t, err)
}

func TestListEventsMalformedItem(t *testing.T) {
	tests := map[string]string{
		"bad start dateTime": `{"id": "d", "summary": "PW: x", "start": {"dateTime": "nope"}, "end": {"dateTime": "2018-01-08T10:00:00Z"}}`,
		"bad end dateTime":   `{"id": "d", "summary": "PW: x", "start": {"dateTime": "2018-01-08T09:00:00Z"}, "end": {"dateTime": "2018-01-08 10:00"}}`,
		"bad date":           `{"id": "d", "summary": "AL: x", "start": {"date": "10/01/2018"}, "end": {"date": "2018-01-11"}}`,
		"no times":           `{"id": "d", "summary": "PW: x"}`,
	}
	for name, item := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"items": [
					{"id": "a", "summary": "PW: ok", "start": {"dateTime": "2018-01-08T09:00:00Z"}, "end": {"dateTime": "2018-01-08T10:00:00Z"}},
					` + item + `]}`))
			}))
			defer srv.Close()

			start := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)
			evs, err := testClient(t, srv).ListEvents(context.Background(), "primary", aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "event d")
			assert.Nil(t, evs)
		})
	}
}

func TestNewSourceDefaultsToPrimary(t *testing.T) {
	assert.Equal(t, "primary", NewSource(nil, "").calendarID)
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	_, err := TokenFromFile(path)
	assert.ErrorIs(t, err, ErrNoToken)

	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
}

func TestLoadOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	secret := map[string]any{
		"installed": map[string]any{
			"client_id":     "id.apps.googleusercontent.com",
			"client_secret": "shh",
			"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
			"token_uri":     "https://oauth2.googleapis.com/token",
			"redirect_uris": []string{"http://localhost"},
		},
	}
	b, err := json.Marshal(secret)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	conf, err := LoadOAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.readonly"}, conf.Scopes)

	_, err = LoadOAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestTokenFromWeb(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","refresh_token":"r"}`))
	}))
	defer tokenSrv.Close()

	conf := &oauth2.Config{
		ClientID: "id",
		Endpoint: oauth2.Endpoint{AuthURL: "https://auth.example/auth", TokenURL: tokenSrv.URL},
	}
	var out strings.Builder
	tok, err := TokenFromWeb(context.Background(), conf, strings.NewReader("  the-code \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Contains(t, out.String(), "https://auth.example/auth")

	_, err = TokenFromWeb(context.Background(), conf, strings.NewReader("\n"), &out)
	assert.Error(t, err)
}
