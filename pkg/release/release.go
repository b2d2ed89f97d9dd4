// Package release mirrors the OpenShift release payload into the bundle.
package release

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/RedHatGov/openshift4-mirror/pkg/oc"
)

// v2Dir is created by oc once a release mirror has been written.
const v2Dir = "v2"

// Options configures a Fetcher.
type Options struct {
	Version string
	// ReleaseDir receives the mirrored release content.
	ReleaseDir   string
	SkipExisting bool
}

// Fetcher mirrors a release to disk through oc.
type Fetcher struct {
	Options
	fs afero.Fs
	oc *oc.Client
}

// NewFetcher returns a Fetcher invoking client.
func NewFetcher(fs afero.Fs, client *oc.Client, opts Options) *Fetcher {
	return &Fetcher{
		Options: opts,
		fs:      fs,
		oc:      client,
	}
}

// Fetch runs the release mirror unless a previous mirror is present and
// existing content should be kept.
func (f *Fetcher) Fetch(ctx context.Context) error {
	existing := filepath.Join(f.ReleaseDir, v2Dir)
	if f.SkipExisting {
		found, err := afero.DirExists(f.fs, existing)
		if err != nil {
			return err
		}
		if found {
			logrus.Infof("Found existing release mirror %s, skipping", existing)
			return nil
		}
	}

	logrus.Infof("Mirroring release %s to %s", f.Version, f.ReleaseDir)
	if err := f.oc.ReleaseMirror(ctx, f.ReleaseDir, f.Version); err != nil {
		return err
	}
	logrus.Infof("Finished mirroring release %s", f.Version)
	return nil
}
