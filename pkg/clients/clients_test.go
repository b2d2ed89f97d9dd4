package clients

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/RedHatGov/openshift4-mirror/pkg/archive"
	"github.com/RedHatGov/openshift4-mirror/pkg/download"
)

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0755,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type mirror struct {
	mu       sync.Mutex
	requests []string
	files    map[string][]byte
}

// newMirror serves files for version under prefix only.
func newMirror(t *testing.T, prefix, version string, files map[string][]byte) (*httptest.Server, *mirror) {
	m := &mirror{files: files}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.URL.Path)
		m.mu.Unlock()

		dir := "/" + prefix + "/" + version
		switch {
		case r.URL.Path == dir || r.URL.Path == dir+"/":
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, dir+"/"):
			body, ok := m.files[strings.TrimPrefix(r.URL.Path, dir+"/")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, m
}

func defaultFiles(t *testing.T) map[string][]byte {
	installer := tarGz(t, map[string]string{"openshift-install": "installer", "README.md": "readme"})
	client := tarGz(t, map[string]string{"oc": "oc", "kubectl": "kubectl", "README.md": "readme"})
	sums := fmt.Sprintf("%s  %s\n%s  %s\n",
		digest.FromBytes(installer).Encoded(), InstallerArchive,
		digest.FromBytes(client).Encoded(), ClientArchive)
	return map[string][]byte{
		InstallerArchive:     installer,
		ClientArchive:        client,
		archive.ChecksumFile: []byte(sums),
	}
}

func newFetcher(t *testing.T, ts *httptest.Server, opts Options) *Fetcher {
	dc, err := download.NewClient(download.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	root := t.TempDir()
	opts.ClientsDir = filepath.Join(root, "clients")
	opts.BinDir = filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(opts.ClientsDir, 0755))
	require.NoError(t, os.MkdirAll(opts.BinDir, 0755))
	if opts.BaseURLs == nil {
		opts.BaseURLs = []string{ts.URL + "/ocp", ts.URL + "/ocp-dev-preview"}
	}
	return NewFetcher(afero.NewOsFs(), dc, opts)
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		version string
		expErr  bool
	}{
		{
			name:    "Valid/GA",
			prefix:  "ocp",
			version: "4.5.11",
		},
		{
			name:    "Valid/DevPreview",
			prefix:  "ocp-dev-preview",
			version: "4.6.0-fc.3",
		},
		{
			name:    "Invalid/Unknown",
			prefix:  "elsewhere",
			version: "4.5.11",
			expErr:  true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts, _ := newMirror(t, test.prefix, test.version, nil)
			f := newFetcher(t, ts, Options{Version: test.version})

			base, err := f.ResolveBaseURL(context.Background())
			if test.expErr {
				var nerr *NoClientMirrorFoundError
				require.ErrorAs(t, err, &nerr)
				require.Equal(t, test.version, nerr.Version)
				require.Len(t, nerr.Candidates, 2)
				return
			}
			require.NoError(t, err)
			require.Equal(t, ts.URL+"/"+test.prefix, base)
		})
	}
}

func TestResolveBaseURLCached(t *testing.T) {
	ts, m := newMirror(t, "ocp", "4.5.11", nil)
	f := newFetcher(t, ts, Options{Version: "4.5.11"})

	_, err := f.ResolveBaseURL(context.Background())
	require.NoError(t, err)
	_, err = f.ResolveBaseURL(context.Background())
	require.NoError(t, err)
	require.Len(t, m.requests, 1)
}

func TestFetchAllDevPreview(t *testing.T) {
	ts, m := newMirror(t, "ocp-dev-preview", "4.6.0-fc.3", defaultFiles(t))
	f := newFetcher(t, ts, Options{Version: "4.6.0-fc.3", VerifyChecksums: true})

	require.NoError(t, f.FetchAll(context.Background()))

	for _, name := range []string{InstallerArchive, ClientArchive, archive.ChecksumFile} {
		require.FileExists(t, filepath.Join(f.ClientsDir, name))
		require.Contains(t, m.requests, "/ocp-dev-preview/4.6.0-fc.3/"+name)
	}
	for _, name := range []string{"openshift-install", "oc", "kubectl"} {
		require.FileExists(t, filepath.Join(f.BinDir, name))
	}
	require.NoFileExists(t, filepath.Join(f.BinDir, "README.md"))
}

func TestFetchSkipExisting(t *testing.T) {
	ts, m := newMirror(t, "ocp", "4.5.11", defaultFiles(t))
	f := newFetcher(t, ts, Options{Version: "4.5.11", SkipExisting: true})

	existing := filepath.Join(f.ClientsDir, archive.ChecksumFile)
	require.NoError(t, os.WriteFile(existing, []byte("local"), 0644))

	require.NoError(t, f.Fetch(context.Background(), archive.ChecksumFile))
	require.Empty(t, m.requests)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "local", string(data))
}

func TestFetchOverwrite(t *testing.T) {
	ts, _ := newMirror(t, "ocp", "4.5.11", defaultFiles(t))
	f := newFetcher(t, ts, Options{Version: "4.5.11"})

	existing := filepath.Join(f.ClientsDir, archive.ChecksumFile)
	require.NoError(t, os.WriteFile(existing, []byte("local"), 0644))

	require.NoError(t, f.Fetch(context.Background(), archive.ChecksumFile))
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Contains(t, string(data), InstallerArchive)
}

func TestFetchMissingMember(t *testing.T) {
	files := defaultFiles(t)
	files[InstallerArchive] = tarGz(t, map[string]string{"README.md": "readme"})
	ts, _ := newMirror(t, "ocp", "4.5.11", files)
	f := newFetcher(t, ts, Options{Version: "4.5.11"})

	err := f.Fetch(context.Background(), InstallerArchive, "openshift-install")
	var merr *archive.MemberNotFoundError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "openshift-install", merr.Member)
}

func TestFetchAllChecksumMismatch(t *testing.T) {
	files := defaultFiles(t)
	files[archive.ChecksumFile] = []byte(fmt.Sprintf("%s  %s\n%s  %s\n",
		digest.FromString("other").Encoded(), InstallerArchive,
		digest.FromBytes(files[ClientArchive]).Encoded(), ClientArchive))
	ts, _ := newMirror(t, "ocp", "4.5.11", files)
	f := newFetcher(t, ts, Options{Version: "4.5.11", VerifyChecksums: true})

	err := f.FetchAll(context.Background())
	var cerr *archive.ChecksumError
	require.ErrorAs(t, err, &cerr)
}

func TestFetchAllMemMapFs(t *testing.T) {
	ts, _ := newMirror(t, "ocp", "4.14.1", defaultFiles(t))
	fs := afero.NewMemMapFs()
	dc, err := download.NewClient(download.WithHTTPClient(ts.Client()), download.WithFs(fs))
	require.NoError(t, err)
	require.NoError(t, fs.MkdirAll("/b/clients", 0755))
	require.NoError(t, fs.MkdirAll("/b/bin", 0755))

	f := NewFetcher(fs, dc, Options{
		Version:         "4.14.1",
		ClientsDir:      "/b/clients",
		BinDir:          "/b/bin",
		BaseURLs:        []string{ts.URL + "/ocp"},
		VerifyChecksums: true,
	})
	require.NoError(t, f.FetchAll(context.Background()))

	for name, body := range map[string]string{"openshift-install": "installer", "oc": "oc", "kubectl": "kubectl"} {
		data, err := afero.ReadFile(fs, filepath.Join("/b/bin", name))
		require.NoError(t, err)
		require.Equal(t, body, string(data))
	}
}

func TestFetchMissingMemberStaleBinary(t *testing.T) {
	files := defaultFiles(t)
	files[InstallerArchive] = tarGz(t, map[string]string{"README.md": "readme"})
	ts, _ := newMirror(t, "ocp", "4.5.11", files)
	f := newFetcher(t, ts, Options{Version: "4.5.11"})
	require.NoError(t, os.WriteFile(filepath.Join(f.BinDir, "openshift-install"), []byte("old"), 0755))

	err := f.Fetch(context.Background(), InstallerArchive, "openshift-install")
	var merr *archive.MemberNotFoundError
	require.ErrorAs(t, err, &merr)
}
