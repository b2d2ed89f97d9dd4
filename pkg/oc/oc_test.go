package oc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RedHatGov/openshift4-mirror/pkg/command"
)

func TestClientArgs(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Client) error
		want string
	}{
		{
			name: "ReleaseMirror",
			run: func(c *Client) error {
				return c.ReleaseMirror(context.Background(), "/b/release", "4.14.1")
			},
			want: "/b/bin/oc adm release mirror --registry-config /b/pull-secret.json --to-dir /b/release 4.14.1",
		},
		{
			name: "CatalogMirrorManifests",
			run: func(c *Client) error {
				return c.CatalogMirrorManifests(context.Background(), "/b/catalogs/redhat-operators",
					"registry.redhat.io/redhat/redhat-operator-index:v4.14")
			},
			want: "/b/bin/oc adm catalog mirror --registry-config /b/pull-secret.json --manifests-only " +
				"--to-manifests /b/catalogs/redhat-operators registry.redhat.io/redhat/redhat-operator-index:v4.14 dummyregistry.example",
		},
		{
			name: "ImageMirror/DefaultFilter",
			run: func(c *Client) error {
				return c.ImageMirror(context.Background(), "/b/catalogs/x", "/b/catalogs/x/mapping.local.txt", "")
			},
			want: "/b/bin/oc image mirror --registry-config /b/pull-secret.json --dir /b/catalogs/x " +
				"--filter-by-os linux/amd64 --continue-on-error=true --filename /b/catalogs/x/mapping.local.txt",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &command.Fake{}
			c := NewClient(fake, "/b/bin/oc", "/b/pull-secret.json")
			require.NoError(t, test.run(c))
			require.Len(t, fake.Calls, 1)
			require.Equal(t, test.want, fake.Calls[0].String())
		})
	}
}

func TestClientToolError(t *testing.T) {
	fake := &command.Fake{
		RunFunc: func(context.Context, string, ...string) error {
			return &command.ToolError{Command: "oc adm release mirror", ExitCode: 1}
		},
	}
	c := NewClient(fake, "oc", "ps.json")
	err := c.ReleaseMirror(context.Background(), "out", "4.14.1")
	var te *command.ToolError
	require.ErrorAs(t, err, &te)
	require.Equal(t, 1, te.ExitCode)
}
