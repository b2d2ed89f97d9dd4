package bundle

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	BinDir      = "bin"
	ReleaseDir  = "release"
	RhcosDir    = "rhcos"
	CatalogsDir = "catalogs"
	ClientsDir  = "clients"

	// PullSecretFile is stored at the top of the bundle directory.
	PullSecretFile = "pull-secret.json"
)

// Layout is the on-disk tree of one bundle, rooted at Root/Version.
type Layout struct {
	fs afero.Fs

	Root      string
	Version   string
	BundleDir string

	Bin      string
	Release  string
	Rhcos    string
	Catalogs string
	Clients  string
}

// NewLayout computes the bundle paths for version under root.
func NewLayout(fs afero.Fs, root, version string) *Layout {
	bundleDir := filepath.Join(root, version)
	return &Layout{
		fs:        fs,
		Root:      root,
		Version:   version,
		BundleDir: bundleDir,
		Bin:       filepath.Join(bundleDir, BinDir),
		Release:   filepath.Join(bundleDir, ReleaseDir),
		Rhcos:     filepath.Join(bundleDir, RhcosDir),
		Catalogs:  filepath.Join(bundleDir, CatalogsDir),
		Clients:   filepath.Join(bundleDir, ClientsDir),
	}
}

// Dirs returns the bundle subdirectories in creation order.
func (l *Layout) Dirs() []string {
	return []string{l.Bin, l.Release, l.Rhcos, l.Catalogs, l.Clients}
}

// PullSecretPath is where the pull secret is persisted for oc.
func (l *Layout) PullSecretPath() string {
	return filepath.Join(l.BundleDir, PullSecretFile)
}

// Ensure creates the bundle subdirectories. Existing directories are kept.
func (l *Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if _, err := l.fs.Stat(dir); os.IsNotExist(err) {
			logrus.Infof("Creating directory: %v", dir)
			if err := l.fs.MkdirAll(dir, os.ModePerm); err != nil {
				return err
			}
		} else {
			logrus.Infof("Found: %v", dir)
		}
	}
	return nil
}
