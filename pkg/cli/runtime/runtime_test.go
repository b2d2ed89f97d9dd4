package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"k8s.io/cli-runtime/pkg/genericclioptions"

	"github.com/RedHatGov/openshift4-mirror/pkg/cli"
	"github.com/RedHatGov/openshift4-mirror/pkg/command"
)

func newOptions(t *testing.T, fake *command.Fake, args ...string) (*Options, *cobra.Command) {
	t.Helper()
	o := &Options{
		RootOptions: &cli.RootOptions{
			IOStreams: genericclioptions.IOStreams{In: &bytes.Buffer{}, Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}},
		},
		newRunner: func(*Options) command.Runner { return fake },
	}
	cmd := &cobra.Command{}
	o.BindFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, o.Complete(cmd))
	return o, cmd
}

func TestRunBuild(t *testing.T) {
	fake := &command.Fake{}
	o, _ := newOptions(t, fake, "--container-runtime", "docker", "--context-dir", "/src/openshift4-mirror")

	require.NoError(t, o.RunBuild(context.Background()))
	require.Len(t, fake.Calls, 1)
	require.Equal(t, "docker build --tag localhost/openshift4-mirror:latest /src/openshift4-mirror", fake.Calls[0].String())
}

func TestCompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
apiVersion: mirror.openshift.io/v1alpha1
kind: BundleConfiguration
runtime:
  containerRuntime: docker
  image: quay.io/example/openshift4-mirror:v1
  contextDir: /opt/openshift4-mirror
  env:
    names:
    - HTTPS_PROXY
`), 0600))

	o, _ := newOptions(t, &command.Fake{}, "--config", path, "--image", "localhost/custom:latest")
	require.Equal(t, "docker", o.ContainerRuntime)
	require.Equal(t, "localhost/custom:latest", o.Image)
	require.Equal(t, "/opt/openshift4-mirror", o.ContextDir)
	require.Equal(t, []string{"OPENSHIFT_MIRROR_"}, o.Env.Prefixes)
	require.Equal(t, []string{"HTTPS_PROXY"}, o.Env.Names)
}

func TestCompleteAbsContextDir(t *testing.T) {
	o, _ := newOptions(t, &command.Fake{})
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, wd, o.ContextDir)
}

func TestRunShellUnknownRuntime(t *testing.T) {
	o, _ := newOptions(t, &command.Fake{}, "--container-runtime", "lxc")
	require.ErrorContains(t, o.RunShell(context.Background()), `unsupported container runtime "lxc"`)
}
