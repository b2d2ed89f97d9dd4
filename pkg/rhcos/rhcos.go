// Package rhcos downloads the Red Hat CoreOS boot image for a platform.
package rhcos

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/RedHatGov/openshift4-mirror/pkg/download"
	"github.com/RedHatGov/openshift4-mirror/pkg/openshift"
)

// DefaultManifestURL is formatted with the installer release branch.
const DefaultManifestURL = "https://raw.githubusercontent.com/openshift/installer/release-%s/data/data/rhcos.json"

// Image is a single platform entry of the manifest.
type Image struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256,omitempty"`
}

// Manifest is the installer's rhcos.json.
type Manifest struct {
	BaseURI string           `json:"baseURI"`
	Images  map[string]Image `json:"images"`
}

// ParseManifest decodes an rhcos.json document.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode rhcos manifest: %w", err)
	}
	return m, nil
}

// Image returns the manifest entry for platform.
func (m *Manifest) Image(platform string) (Image, error) {
	img, ok := m.Images[platform]
	if !ok || img.Path == "" {
		var valid []string
		for p := range m.Images {
			valid = append(valid, p)
		}
		sort.Strings(valid)
		return Image{}, &openshift.InvalidPlatformError{Platform: platform, Valid: valid}
	}
	return img, nil
}

// ImageURL returns the download location of the platform image.
func (m *Manifest) ImageURL(platform string) (string, error) {
	img, err := m.Image(platform)
	if err != nil {
		return "", err
	}
	return m.BaseURI + img.Path, nil
}

// Options configures a Fetcher.
type Options struct {
	Version  openshift.Version
	Platform string
	// RhcosDir receives the image.
	RhcosDir     string
	SkipExisting bool
	// ManifestURL is formatted with the release branch. Defaults to
	// DefaultManifestURL.
	ManifestURL string
}

// Fetcher downloads the RHCOS image pinned by the installer release branch.
type Fetcher struct {
	Options
	fs     afero.Fs
	client *download.Client
}

// NewFetcher returns a Fetcher writing through fs with client.
func NewFetcher(fs afero.Fs, client *download.Client, opts Options) *Fetcher {
	if opts.ManifestURL == "" {
		opts.ManifestURL = DefaultManifestURL
	}
	return &Fetcher{
		Options: opts,
		fs:      fs,
		client:  client,
	}
}

// Manifest retrieves the rhcos.json for the configured version.
func (f *Fetcher) Manifest(ctx context.Context) (*Manifest, error) {
	branch, err := f.Version.RHCOSBranch()
	if err != nil {
		return nil, err
	}
	data, err := f.client.Get(ctx, fmt.Sprintf(f.ManifestURL, branch))
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// Fetch downloads the image for the configured platform to the rhcos
// directory.
func (f *Fetcher) Fetch(ctx context.Context) error {
	m, err := f.Manifest(ctx)
	if err != nil {
		return err
	}
	img, err := m.Image(f.Platform)
	if err != nil {
		return err
	}

	logrus.Info("Starting RHCOS download")
	outputPath := filepath.Join(f.RhcosDir, filepath.Base(img.Path))
	exists, err := afero.Exists(f.fs, outputPath)
	if err != nil {
		return err
	}
	if f.SkipExisting && exists {
		logrus.Infof("Found existing file %s, skipping download", outputPath)
		return nil
	}
	if err := f.client.ToFile(ctx, m.BaseURI+img.Path, outputPath); err != nil {
		return err
	}
	logrus.Info("Finished RHCOS download")
	return nil
}
