// Package oc drives the mirroring subcommands of the OpenShift client.
package oc

import (
	"context"
	"fmt"

	"github.com/RedHatGov/openshift4-mirror/pkg/command"
)

const (
	// PlaceholderRegistry is the registry host passed to the manifests-only
	// catalog mirror. It is rewritten to a local file URI before mirroring.
	PlaceholderRegistry = "dummyregistry.example"
	// MappingFile is written by the manifests-only catalog mirror.
	MappingFile = "mapping.txt"
	// LocalMappingFile holds the mapping rewritten to local file destinations.
	LocalMappingFile = "mapping.local.txt"
	// DefaultFilterByOS restricts catalog image mirroring to a single platform.
	DefaultFilterByOS = "linux/amd64"
)

// Client invokes oc with a registry config (pull secret) for authentication.
type Client struct {
	Runner command.Runner
	// Binary is the path to the oc executable.
	Binary string
	// RegistryConfig is the path to the pull secret.
	RegistryConfig string
}

// NewClient returns a Client for the oc binary at path.
func NewClient(runner command.Runner, path, registryConfig string) *Client {
	return &Client{
		Runner:         runner,
		Binary:         path,
		RegistryConfig: registryConfig,
	}
}

// ReleaseMirror mirrors the release payload for version into toDir.
func (c *Client) ReleaseMirror(ctx context.Context, toDir, version string) error {
	return c.run(ctx,
		"adm", "release", "mirror",
		"--registry-config", c.RegistryConfig,
		"--to-dir", toDir,
		version,
	)
}

// CatalogMirrorManifests resolves index against the placeholder registry
// and writes the mapping file to toManifests without mirroring any image.
func (c *Client) CatalogMirrorManifests(ctx context.Context, toManifests, index string) error {
	return c.run(ctx,
		"adm", "catalog", "mirror",
		"--registry-config", c.RegistryConfig,
		"--manifests-only",
		"--to-manifests", toManifests,
		index,
		PlaceholderRegistry,
	)
}

// ImageMirror mirrors every image listed in mappingFile into dir. Errors
// for individual images are reported by oc and do not stop the mirror.
func (c *Client) ImageMirror(ctx context.Context, dir, mappingFile, filterByOS string) error {
	if filterByOS == "" {
		filterByOS = DefaultFilterByOS
	}
	return c.run(ctx,
		"image", "mirror",
		"--registry-config", c.RegistryConfig,
		"--dir", dir,
		"--filter-by-os", filterByOS,
		"--continue-on-error=true",
		"--filename", mappingFile,
	)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if err := c.Runner.Run(ctx, c.Binary, args...); err != nil {
		return fmt.Errorf("oc %s %s: %w", args[0], args[1], err)
	}
	return nil
}
