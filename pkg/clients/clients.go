// Package clients downloads the OpenShift installer and client binaries.
package clients

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/RedHatGov/openshift4-mirror/pkg/archive"
	"github.com/RedHatGov/openshift4-mirror/pkg/download"
)

const (
	InstallerArchive = "openshift-install-linux.tar.gz"
	ClientArchive    = "openshift-client-linux.tar.gz"
)

// DefaultBaseURLs are probed in order: GA releases first, then
// dev-preview builds.
var DefaultBaseURLs = []string{
	"https://mirror.openshift.com/pub/openshift-v4/clients/ocp",
	"https://mirror.openshift.com/pub/openshift-v4/clients/ocp-dev-preview",
}

// Artifact is a file published on the client mirror.
type Artifact struct {
	Filename string
	// Members are extracted into the bin directory when set.
	Members []string
}

// DefaultArtifacts are fetched by FetchAll.
var DefaultArtifacts = []Artifact{
	{Filename: InstallerArchive, Members: []string{"openshift-install"}},
	{Filename: ClientArchive, Members: []string{"oc", "kubectl"}},
	{Filename: archive.ChecksumFile},
}

// NoClientMirrorFoundError is returned when no candidate mirror serves
// the requested version.
type NoClientMirrorFoundError struct {
	Version    string
	Candidates []string
}

func (e *NoClientMirrorFoundError) Error() string {
	return fmt.Sprintf("no client mirror found for version %s, tried: %s", e.Version, strings.Join(e.Candidates, ", "))
}

// Options configures a Fetcher.
type Options struct {
	Version string
	// ClientsDir receives the downloaded files.
	ClientsDir string
	// BinDir receives the extracted binaries.
	BinDir string
	// BaseURLs defaults to DefaultBaseURLs.
	BaseURLs        []string
	SkipExisting    bool
	VerifyChecksums bool
}

// Fetcher downloads client artifacts from the first mirror that serves
// the requested version.
type Fetcher struct {
	Options
	fs       afero.Fs
	client   *download.Client
	resolved string
}

// NewFetcher returns a Fetcher writing through fs with client.
func NewFetcher(fs afero.Fs, client *download.Client, opts Options) *Fetcher {
	if len(opts.BaseURLs) == 0 {
		opts.BaseURLs = DefaultBaseURLs
	}
	return &Fetcher{
		Options: opts,
		fs:      fs,
		client:  client,
	}
}

// ResolveBaseURL returns the first base URL that answers 200 for the
// version. The result is cached for the lifetime of the Fetcher.
func (f *Fetcher) ResolveBaseURL(ctx context.Context) (string, error) {
	if f.resolved != "" {
		return f.resolved, nil
	}
	for _, base := range f.BaseURLs {
		probe := joinURL(base, f.Version)
		code, err := f.client.Probe(ctx, probe)
		if err != nil {
			logrus.Debugf("Probe of %s failed: %v", probe, err)
			continue
		}
		if code == 200 {
			logrus.Infof("Using client mirror %s", base)
			f.resolved = base
			return base, nil
		}
		logrus.Debugf("Probe of %s returned %d", probe, code)
	}
	return "", &NoClientMirrorFoundError{Version: f.Version, Candidates: f.BaseURLs}
}

// Fetch downloads filename into the clients directory and extracts
// members into the bin directory. Existing downloads are trusted when
// SkipExisting is set.
func (f *Fetcher) Fetch(ctx context.Context, filename string, members ...string) error {
	outputPath := filepath.Join(f.ClientsDir, filename)

	exists, err := afero.Exists(f.fs, outputPath)
	if err != nil {
		return err
	}
	if f.SkipExisting && exists {
		logrus.Infof("Found existing file %s, skipping download of %s", outputPath, filename)
		return nil
	}

	base, err := f.ResolveBaseURL(ctx)
	if err != nil {
		return err
	}
	if err := f.client.ToFile(ctx, joinURL(base, f.Version, filename), outputPath); err != nil {
		return err
	}

	if len(members) > 0 {
		if err := archive.ExtractMembers(f.fs, outputPath, f.BinDir, members...); err != nil {
			return err
		}
	}
	return nil
}

// FetchAll downloads the installer, the client and the checksum file.
func (f *Fetcher) FetchAll(ctx context.Context) error {
	logrus.Info("Starting client download")
	for _, a := range DefaultArtifacts {
		if err := f.Fetch(ctx, a.Filename, a.Members...); err != nil {
			return err
		}
	}
	if f.VerifyChecksums {
		if err := f.verify(); err != nil {
			return err
		}
	}
	logrus.Info("Finished client download")
	return nil
}

func (f *Fetcher) verify() error {
	var archives []string
	for _, a := range DefaultArtifacts {
		if len(a.Members) > 0 {
			archives = append(archives, a.Filename)
		}
	}
	logrus.Infof("Verifying checksums of %s", strings.Join(archives, ", "))
	return archive.VerifyChecksums(f.fs, filepath.Join(f.ClientsDir, archive.ChecksumFile), f.ClientsDir, archives...)
}

func joinURL(base string, elem ...string) string {
	return strings.Join(append([]string{strings.TrimSuffix(base, "/")}, elem...), "/")
}
