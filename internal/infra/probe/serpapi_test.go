package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmcp/internal/domain"
)

func TestSerpAPIProbe_Verify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.KeyVerification
	}{
		{
			name:   "valid key reports top-level keys",
			status: http.StatusOK,
			body:   `{"search_metadata":{},"organic_results":[],"search_parameters":{}}`,
			want: domain.KeyVerification{
				OK:         true,
				HTTPStatus: http.StatusOK,
				Keys:       []string{"organic_results", "search_metadata", "search_parameters"},
				Sample:     `{"search_metadata":{},"organic_results":[],"search_parameters":{}}`,
			},
		},
		{
			name:   "api error field",
			status: http.StatusUnauthorized,
			body:   `{"error":"Invalid API key."}`,
			want: domain.KeyVerification{
				HTTPStatus: http.StatusUnauthorized,
				Error:      "Invalid API key.",
				Sample:     `{"error":"Invalid API key."}`,
			},
		},
		{
			name:   "non json body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			want: domain.KeyVerification{
				HTTPStatus: http.StatusBadGateway,
				Error:      "non-JSON response (HTTP 502)",
				Sample:     `<html>bad gateway</html>`,
			},
		},
		{
			name:   "json array has no keys",
			status: http.StatusOK,
			body:   `[1,2]`,
			want:   domain.KeyVerification{OK: true, HTTPStatus: http.StatusOK, Keys: []string{}, Sample: `[1,2]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "example", r.URL.Query().Get("q"))
				assert.Equal(t, "google", r.URL.Query().Get("engine"))
				assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got := NewSerpAPIProbe(server.URL, nil).Verify(context.Background(), "secret", time.Second)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSerpAPIProbe_SampleIsTruncatedAndMasked(t *testing.T) {
	body := "upstream echoed secret " + strings.Repeat("é", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	got := NewSerpAPIProbe(server.URL, nil).Verify(context.Background(), "secret", time.Second)
	require.False(t, got.OK)
	require.Equal(t, "non-JSON response (HTTP 500)", got.Error)
	require.NotContains(t, got.Sample, "secret")
	require.True(t, strings.HasPrefix(got.Sample, "upstream echoed *** é"))
	require.Equal(t, 1000, utf8.RuneCountInString(got.Sample))
}

func TestSerpAPIProbe_MissingKey(t *testing.T) {
	got := NewSerpAPIProbe("http://127.0.0.1:1", nil).Verify(context.Background(), "", time.Second)
	require.False(t, got.OK)
	require.Equal(t, "SERPAPI_KEY not found", got.Error)
}

func TestSerpAPIProbe_TimeoutIsReported(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	got := NewSerpAPIProbe(server.URL, nil).Verify(context.Background(), "secret", 50*time.Millisecond)
	require.False(t, got.OK)
	require.Zero(t, got.HTTPStatus)
	require.Contains(t, got.Error, "deadline exceeded")
	require.NotContains(t, got.Error, "secret")
}
