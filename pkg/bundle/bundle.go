// Package bundle assembles an offline OpenShift installation bundle:
// client binaries, the release payload, operator catalogs and the RHCOS
// image for one platform.
package bundle

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/RedHatGov/openshift4-mirror/pkg/archive"
	"github.com/RedHatGov/openshift4-mirror/pkg/catalog"
	"github.com/RedHatGov/openshift4-mirror/pkg/clients"
	"github.com/RedHatGov/openshift4-mirror/pkg/command"
	"github.com/RedHatGov/openshift4-mirror/pkg/download"
	"github.com/RedHatGov/openshift4-mirror/pkg/oc"
	"github.com/RedHatGov/openshift4-mirror/pkg/openshift"
	"github.com/RedHatGov/openshift4-mirror/pkg/release"
	"github.com/RedHatGov/openshift4-mirror/pkg/rhcos"
)

// Phase names a step of a bundle run.
type Phase string

const (
	PhaseClients  Phase = "clients"
	PhaseRelease  Phase = "release"
	PhaseCatalogs Phase = "catalogs"
	PhaseRhcos    Phase = "rhcos"
	PhasePack     Phase = "pack"
)

// GiB is the unit of Options.ArchiveSize.
const GiB int64 = 1 << 30

// PhaseError is returned for a failed phase.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Options configures a bundle run.
type Options struct {
	// Root is the directory holding one bundle per version.
	Root       string
	Version    string
	PullSecret []byte
	// Platform selects the RHCOS image.
	Platform string
	// Catalogs to mirror. Empty means all known catalogs.
	Catalogs []string

	SkipExisting bool
	SkipRelease  bool
	SkipCatalogs bool
	SkipRhcos    bool

	VerifyChecksums bool
	// ArchiveSize in GiB packs the finished bundle into split archives
	// when greater than zero.
	ArchiveSize int64
	// DeletePullSecret removes the stored pull secret once the run ends.
	DeletePullSecret bool
	// OCPath defaults to the oc binary extracted into the bundle.
	OCPath string

	// ClientBaseURLs overrides clients.DefaultBaseURLs.
	ClientBaseURLs []string
	// RhcosManifestURL overrides rhcos.DefaultManifestURL.
	RhcosManifestURL string

	Fs     afero.Fs
	Runner command.Runner
	Client *download.Client
}

// Bundle is a single bundle run.
type Bundle struct {
	Options
	Layout *Layout

	version        openshift.Version
	pullSecretPath string
}

// New validates the version, creates the bundle directories and stores
// the pull secret.
func New(opts Options) (*Bundle, error) {
	version, err := openshift.ParseVersion(opts.Version)
	if err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Runner == nil {
		opts.Runner = command.NewExec()
	}
	if opts.Client == nil {
		client, err := download.NewClient(download.WithFs(opts.Fs))
		if err != nil {
			return nil, err
		}
		opts.Client = client
	}

	layout := NewLayout(opts.Fs, opts.Root, version.String())
	if opts.OCPath == "" {
		opts.OCPath = filepath.Join(layout.Bin, "oc")
	}
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("create bundle directories: %w", err)
	}
	pullSecretPath, err := SavePullSecret(opts.Fs, layout.BundleDir, opts.PullSecret)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Options:        opts,
		Layout:         layout,
		version:        version,
		pullSecretPath: pullSecretPath,
	}, nil
}

// PullSecretPath is where the pull secret was stored.
func (b *Bundle) PullSecretPath() string {
	return b.pullSecretPath
}

// ArchiveDir receives the split archives of a packed bundle.
func (b *Bundle) ArchiveDir() string {
	return filepath.Join(b.Root, b.version.String()+"-archive")
}

type phase struct {
	name Phase
	skip bool
	run  func(context.Context) error
}

// Run downloads the clients and then runs every phase that is not
// skipped. A client failure stops the run, failures of later phases are
// returned together once all phases ran.
func (b *Bundle) Run(ctx context.Context) error {
	logrus.Infof("Starting bundle of OpenShift %s in %s", b.version, b.Layout.BundleDir)

	if err := b.clients().FetchAll(ctx); err != nil {
		b.cleanup()
		return &PhaseError{Phase: PhaseClients, Err: err}
	}

	var errs []error
	for _, p := range b.phases() {
		if p.skip {
			logrus.Infof("Skipping %s", p.name)
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.run(ctx); err != nil {
			logrus.Errorf("Phase %s failed: %v", p.name, err)
			errs = append(errs, &PhaseError{Phase: p.name, Err: err})
		}
	}

	b.cleanup()

	if b.ArchiveSize > 0 {
		if len(errs) > 0 {
			logrus.Warnf("Not packing incomplete bundle %s", b.Layout.BundleDir)
		} else if err := b.Pack(); err != nil {
			errs = append(errs, &PhaseError{Phase: PhasePack, Err: err})
		}
	}

	if len(errs) == 0 {
		logrus.Infof("Finished bundle of OpenShift %s", b.version)
	}
	return utilerrors.NewAggregate(errs)
}

func (b *Bundle) phases() []phase {
	return []phase{
		{name: PhaseRelease, skip: b.SkipRelease, run: b.release().Fetch},
		{name: PhaseCatalogs, skip: b.SkipCatalogs, run: b.catalogs().FetchAll},
		{name: PhaseRhcos, skip: b.SkipRhcos, run: b.rhcos().Fetch},
	}
}

func (b *Bundle) cleanup() {
	if !b.DeletePullSecret {
		return
	}
	if err := DeletePullSecret(b.Fs, b.pullSecretPath); err != nil {
		logrus.Warn(err)
	}
}

// Pack writes the bundle directory into split tar archives of at most
// ArchiveSize GiB each.
func (b *Bundle) Pack() error {
	a, err := archive.NewArchiver("bundle.tar")
	if err != nil {
		return err
	}
	prefix := "openshift4-mirror_" + b.version.String()
	logrus.Infof("Packing %s into %s", b.Layout.BundleDir, b.ArchiveDir())
	return archive.CreateSplitArchive(b.Fs, a, b.ArchiveDir(), prefix, b.ArchiveSize*GiB, b.Layout.BundleDir)
}

func (b *Bundle) oc() *oc.Client {
	return oc.NewClient(b.Runner, b.OCPath, b.pullSecretPath)
}

func (b *Bundle) clients() *clients.Fetcher {
	return clients.NewFetcher(b.Fs, b.Client, clients.Options{
		Version:         b.version.String(),
		ClientsDir:      b.Layout.Clients,
		BinDir:          b.Layout.Bin,
		BaseURLs:        b.ClientBaseURLs,
		SkipExisting:    b.SkipExisting,
		VerifyChecksums: b.VerifyChecksums,
	})
}

func (b *Bundle) release() *release.Fetcher {
	return release.NewFetcher(b.Fs, b.oc(), release.Options{
		Version:      b.version.String(),
		ReleaseDir:   b.Layout.Release,
		SkipExisting: b.SkipExisting,
	})
}

func (b *Bundle) catalogs() *catalog.Fetcher {
	return catalog.NewFetcher(b.Fs, b.oc(), catalog.Options{
		Channel:      b.version.Channel(),
		CatalogsDir:  b.Layout.Catalogs,
		Catalogs:     b.Catalogs,
		SkipExisting: b.SkipExisting,
	})
}

func (b *Bundle) rhcos() *rhcos.Fetcher {
	return rhcos.NewFetcher(b.Fs, b.Client, rhcos.Options{
		Version:      b.version,
		Platform:     b.Platform,
		RhcosDir:     b.Layout.Rhcos,
		SkipExisting: b.SkipExisting,
		ManifestURL:  b.RhcosManifestURL,
	})
}
