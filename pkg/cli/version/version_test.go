package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/component-base/version"
	"sigs.k8s.io/yaml"

	"github.com/RedHatGov/openshift4-mirror/pkg/cli"
)

func TestVersionRun(t *testing.T) {
	tests := []struct {
		name   string
		output string
		short  bool
		check  func(t *testing.T, out []byte)
	}{
		{
			name:  "Short",
			short: true,
			check: func(t *testing.T, out []byte) {
				require.Equal(t, "Client Version: "+version.Get().GitVersion+"\n", string(out))
			},
		},
		{
			name:   "JSON",
			output: "json",
			check: func(t *testing.T, out []byte) {
				var v Version
				require.NoError(t, json.Unmarshal(out, &v))
				require.Equal(t, version.Get().GitVersion, v.ClientVersion.GitVersion)
			},
		},
		{
			name:   "YAML",
			output: "yaml",
			check: func(t *testing.T, out []byte) {
				var v Version
				require.NoError(t, yaml.Unmarshal(out, &v))
				require.Equal(t, version.Get().Platform, v.ClientVersion.Platform)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			o := VersionOptions{
				RootOptions: &cli.RootOptions{IOStreams: genericclioptions.IOStreams{Out: &out}},
				Output:      test.output,
				Short:       test.short,
			}
			require.NoError(t, o.Validate())
			require.NoError(t, o.Run())
			test.check(t, out.Bytes())
		})
	}
}

func TestVersionValidate(t *testing.T) {
	o := VersionOptions{Output: "table"}
	require.EqualError(t, o.Validate(), `--output must be 'yaml' or 'json'`)
}
