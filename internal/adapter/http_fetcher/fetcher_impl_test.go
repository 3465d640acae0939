package http_fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/colorvariant-harvester/internal/repository"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ua=" + r.UserAgent() + "</html>"))
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	srv := newTestServer(t)
	f, err := NewHTTPFetcher(Options{UserAgent: "harvester-test"})
	require.NoError(t, err)
	defer f.Close()

	body, err := f.Fetch(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Equal(t, "<html>ua=harvester-test</html>", string(body))
}

func TestFetch_BadStatus(t *testing.T) {
	srv := newTestServer(t)
	f, err := NewHTTPFetcher(Options{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")

	require.ErrorIs(t, err, repository.ErrBadStatus)
	var statusErr *repository.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := newTestServer(t)
	addr := srv.URL
	srv.Close()
	f, err := NewHTTPFetcher(Options{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), addr+"/page")

	assert.ErrorIs(t, err, repository.ErrPageUnreachable)
}

func TestFetch_Timeout(t *testing.T) {
	srv := newTestServer(t)
	f, err := NewHTTPFetcher(Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/slow")

	assert.ErrorIs(t, err, repository.ErrPageUnreachable)
}

func TestFetch_WrapTransport(t *testing.T) {
	srv := newTestServer(t)
	var seen []string
	f, err := NewHTTPFetcher(Options{
		WrapTransport: func(next http.RoundTripper) http.RoundTripper {
			return roundTripFunc(func(req *http.Request) (*http.Response, error) {
				seen = append(seen, req.URL.Path)
				return next.RoundTrip(req)
			})
		},
	})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Equal(t, []string{"/page"}, seen)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestNewHTTPFetcher_InvalidProxy(t *testing.T) {
	_, err := NewHTTPFetcher(Options{ProxyURL: "://nope"})
	assert.Error(t, err)
}
