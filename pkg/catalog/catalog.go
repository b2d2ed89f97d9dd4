// Package catalog mirrors operator catalog indexes and their images into
// the bundle.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/RedHatGov/openshift4-mirror/pkg/oc"
)

const (
	RedHatOperators    = "redhat-operators"
	CertifiedOperators = "certified-operators"
	RedHatMarketplace  = "redhat-marketplace"
	CommunityOperators = "community-operators"
)

// UnknownCatalogError is returned for a catalog name with no known index.
type UnknownCatalogError struct {
	Name  string
	Known []string
}

func (e *UnknownCatalogError) Error() string {
	return fmt.Sprintf("unknown catalog %q, must be one of: %s", e.Name, strings.Join(e.Known, ", "))
}

// IndexMap returns the index image of every known catalog for channel
// (MAJOR.MINOR).
func IndexMap(channel string) map[string]string {
	return map[string]string{
		RedHatOperators:    "registry.redhat.io/redhat/redhat-operator-index:v" + channel,
		CertifiedOperators: "registry.redhat.io/redhat/certified-operator-index:v" + channel,
		RedHatMarketplace:  "registry.redhat.io/redhat/redhat-marketplace-index:v" + channel,
		CommunityOperators: "registry.redhat.io/redhat/community-operator-index:latest",
	}
}

// Names returns the known catalog names in sorted order.
func Names() []string {
	var names []string
	for n := range IndexMap("") {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidateNames checks that every name is a known catalog.
func ValidateNames(names []string) error {
	known := IndexMap("")
	var errs []error
	for _, n := range names {
		if _, ok := known[n]; !ok {
			errs = append(errs, &UnknownCatalogError{Name: n, Known: Names()})
		}
	}
	return utilerrors.NewAggregate(errs)
}

// RewriteMapping reads the mapping written by a manifests-only catalog
// mirror in dir and writes a copy that targets local files instead of the
// placeholder registry.
func RewriteMapping(fs afero.Fs, dir string) (string, error) {
	src := filepath.Join(dir, oc.MappingFile)
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return "", fmt.Errorf("read mapping: %w", err)
	}

	rewritten := strings.ReplaceAll(string(data), oc.PlaceholderRegistry+"/", "file://")

	dest := filepath.Join(dir, oc.LocalMappingFile)
	if err := afero.WriteFile(fs, dest, []byte(rewritten), 0644); err != nil {
		return "", fmt.Errorf("write mapping: %w", err)
	}
	logrus.Debugf("Rewrote %s to %s", src, dest)
	return dest, nil
}

// Options configures a Fetcher.
type Options struct {
	// Channel is the MAJOR.MINOR of the release the catalogs belong to.
	Channel string
	// CatalogsDir receives one directory per catalog.
	CatalogsDir string
	// Catalogs are mirrored in order. Empty means all known catalogs.
	Catalogs     []string
	SkipExisting bool
	// FilterByOS restricts mirrored images to one platform.
	FilterByOS string
}

// Fetcher mirrors operator catalogs through oc.
type Fetcher struct {
	Options
	fs afero.Fs
	oc *oc.Client
}

// NewFetcher returns a Fetcher invoking client.
func NewFetcher(fs afero.Fs, client *oc.Client, opts Options) *Fetcher {
	if len(opts.Catalogs) == 0 {
		opts.Catalogs = Names()
	}
	return &Fetcher{
		Options: opts,
		fs:      fs,
		oc:      client,
	}
}

// FetchAll mirrors every requested catalog. A failed catalog does not
// stop the remaining ones; all failures are returned together.
func (f *Fetcher) FetchAll(ctx context.Context) error {
	var errs []error
	for _, c := range f.Catalogs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := f.Fetch(ctx, c); err != nil {
			logrus.Errorf("Mirroring catalog %s failed: %v", c, err)
			errs = append(errs, fmt.Errorf("catalog %s: %w", c, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Fetch mirrors the catalog with the given name. The catalog directory is
// removed again when mirroring fails, so SkipExisting only trusts
// catalogs that completed.
func (f *Fetcher) Fetch(ctx context.Context, catalog string) (err error) {
	index, ok := IndexMap(f.Channel)[catalog]
	if !ok {
		return &UnknownCatalogError{Name: catalog, Known: Names()}
	}
	if _, err := name.ParseReference(index); err != nil {
		return fmt.Errorf("index image %q: %w", index, err)
	}

	dir := filepath.Join(f.CatalogsDir, catalog)
	if f.SkipExisting {
		found, err := afero.DirExists(f.fs, dir)
		if err != nil {
			return err
		}
		if found {
			logrus.Infof("Found existing catalog %s, skipping", dir)
			return nil
		}
	}

	logrus.Infof("Mirroring catalog %s from %s", catalog, index)
	if err := f.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := f.fs.RemoveAll(dir); rerr != nil {
			logrus.Warnf("Removing incomplete catalog %s: %v", dir, rerr)
		}
	}()
	if err := f.oc.CatalogMirrorManifests(ctx, dir, index); err != nil {
		return err
	}
	mapping, err := RewriteMapping(f.fs, dir)
	if err != nil {
		return err
	}
	if err := f.oc.ImageMirror(ctx, dir, mapping, f.FilterByOS); err != nil {
		return err
	}
	logrus.Infof("Finished mirroring catalog %s", catalog)
	return nil
}
