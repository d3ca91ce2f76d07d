package biometric_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/generic"
)

var march2024 = generic.Month{Year: 2024, Month: time.March}

func newClient(url string, cfg biometric.Config) *biometric.Client {
	cfg.BaseURL = url
	return biometric.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPunches_RequestShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"InOutPunchData": [
			{"Empcode": "E001", "DateString": "04/03/2024", "INTime": "09:00", "OUTTime": "18:00"},
			{"Empcode": 1002, "DateString": "04/03/2024", "INTime": "--:--", "OUTTime": "--:--"}
		]}`))
	}))
	defer srv.Close()

	rows, err := newClient(srv.URL+"/api/v2/punches?key=abc", biometric.Config{Token: "c2VjcmV0"}).
		FetchPunches(context.Background(), march2024)
	require.NoError(t, err)

	// THEN: The vendor sees the whole month with literal slashes
	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/v2/punches", got.URL.Path)
	assert.Equal(t, "key=abc&Empcode=ALL&FromDate=01/03/2024&ToDate=31/03/2024", got.URL.RawQuery)
	assert.Equal(t, "Basic c2VjcmV0", got.Header.Get("Authorization"))

	require.Len(t, rows, 2)
	assert.Equal(t, attendance.Code("E001"), rows[0].Empcode)
	assert.Equal(t, attendance.Code("1002"), rows[1].Empcode)
}

func TestFetchPunches_BearerScheme(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"InOutPunchData": []}`))
	}))
	defer srv.Close()

	rows, err := newClient(srv.URL, biometric.Config{Token: "tok", AuthScheme: "Bearer"}).
		FetchPunches(context.Background(), generic.Month{Year: 2024, Month: time.February})
	require.NoError(t, err)
	assert.Empty(t, rows, "an empty list is a valid answer")
	assert.NotNil(t, rows)
	assert.Equal(t, "Bearer tok", auth)
}

func TestFetchPunches_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{"server error", http.StatusServiceUnavailable, "maintenance", http.StatusServiceUnavailable},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`, http.StatusUnauthorized},
		{"not json", http.StatusOK, "<html>", http.StatusOK},
		{"missing list", http.StatusOK, `{"Status":"ok"}`, http.StatusOK},
		{"null list", http.StatusOK, `{"InOutPunchData": null}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL, biometric.Config{}).FetchPunches(context.Background(), march2024)
			require.Error(t, err)
			assert.True(t, generic.IsUpstream(err))

			var ue *generic.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "biometric", ue.Service)
			assert.Equal(t, tt.code, ue.StatusCode)
		})
	}
}

func TestFetchPunches_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient(srv.URL, biometric.Config{Timeout: 50 * time.Millisecond}).
		FetchPunches(context.Background(), march2024)
	assert.True(t, generic.IsUpstream(err))
}

func TestFetchPunches_NoURL(t *testing.T) {
	_, err := newClient("", biometric.Config{}).FetchPunches(context.Background(), march2024)
	assert.True(t, generic.IsUpstream(err))
}
