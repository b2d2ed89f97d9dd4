package bundle

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := NewLayout(afero.NewMemMapFs(), "/data/bundle", "4.14.1")
	require.Equal(t, "/data/bundle/4.14.1", l.BundleDir)
	require.Equal(t, []string{
		"/data/bundle/4.14.1/bin",
		"/data/bundle/4.14.1/release",
		"/data/bundle/4.14.1/rhcos",
		"/data/bundle/4.14.1/catalogs",
		"/data/bundle/4.14.1/clients",
	}, l.Dirs())
	require.Equal(t, "/data/bundle/4.14.1/pull-secret.json", l.PullSecretPath())
}

func TestLayoutEnsure(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLayout(fs, "/data/bundle", "4.14.1")

	require.NoError(t, fs.MkdirAll(l.Release, os.ModePerm))
	require.NoError(t, afero.WriteFile(fs, l.Release+"/keep", []byte("x"), 0644))

	// Ensure is idempotent and never removes content.
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Ensure())
		for _, dir := range l.Dirs() {
			ok, err := afero.DirExists(fs, dir)
			require.NoError(t, err)
			require.True(t, ok, dir)
		}
	}
	data, err := afero.ReadFile(fs, l.Release+"/keep")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}

func TestLayoutEnsureReadOnly(t *testing.T) {
	l := NewLayout(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/data/bundle", "4.14.1")
	require.Error(t, l.Ensure())
}
