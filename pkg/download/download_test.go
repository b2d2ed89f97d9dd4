package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok/file.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("contents"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestProbe(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	code, err := c.Probe(context.Background(), ts.URL+"/ok/file.txt")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	code, err = c.Probe(context.Background(), ts.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, code)
}

func TestGet(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	data, err := c.Get(context.Background(), ts.URL+"/ok/file.txt")
	require.NoError(t, err)
	require.Equal(t, "contents", string(data))

	_, err = c.Get(context.Background(), ts.URL+"/missing")
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusNotFound, herr.StatusCode)
}

func TestToFile(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		progress bool
		err      bool
	}{
		{
			name: "Valid/NoProgress",
			path: "/ok/file.txt",
		},
		{
			name:     "Valid/WithProgress",
			path:     "/ok/file.txt",
			progress: true,
		},
		{
			name: "Invalid/NotFound",
			path: "/missing",
			err:  true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts := newTestServer(t)
			opts := []Option{WithHTTPClient(ts.Client())}
			if test.progress {
				opts = append(opts, WithProgress(&bytes.Buffer{}))
			}
			c, err := NewClient(opts...)
			require.NoError(t, err)

			dest := filepath.Join(t.TempDir(), "file.txt")
			err = c.ToFile(context.Background(), ts.URL+test.path, dest)
			if test.err {
				require.Error(t, err)
				require.NoFileExists(t, dest)
				require.NoFileExists(t, dest+partialSuffix)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			require.Equal(t, "contents", string(data))
			require.NoFileExists(t, dest+partialSuffix)
		})
	}
}

func TestToFileMemFs(t *testing.T) {
	ts := newTestServer(t)
	fs := afero.NewMemMapFs()
	c, err := NewClient(WithHTTPClient(ts.Client()), WithFs(fs))
	require.NoError(t, err)

	require.NoError(t, c.ToFile(context.Background(), ts.URL+"/ok/file.txt", "/bundle/file.txt"))
	data, err := afero.ReadFile(fs, "/bundle/file.txt")
	require.NoError(t, err)
	require.Equal(t, "contents", string(data))
}

func TestReachable(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	require.True(t, c.Reachable(context.Background(), ts.URL+"/missing", time.Second))

	url := ts.URL
	ts.Close()
	require.False(t, c.Reachable(context.Background(), url, time.Second))
}
