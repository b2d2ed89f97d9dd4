package v1alpha1

import (
	"bytes"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/RedHatGov/openshift4-mirror/pkg/runtime"
)

// BundleConfiguration object kind.
const BundleConfigurationKind = "BundleConfiguration"

// BundleConfiguration configures bundle creation and the container runtime.
type BundleConfiguration struct {
	metav1.TypeMeta `json:",inline"`

	BundleConfigurationSpec `json:",inline"`
}

type BundleConfigurationSpec struct {
	// OpenShiftVersion is the numbered release to bundle, e.g. 4.14.1.
	OpenShiftVersion string `json:"openshiftVersion,omitempty"`
	// Platform selects the RHCOS image.
	Platform string `json:"platform,omitempty"`
	// PullSecretFile is the path to the pull secret. Must be a file ref,
	// as this value may be stored unencrypted.
	PullSecretFile string `json:"pullSecretFile,omitempty"`
	// BundleDir is the directory holding one bundle per version.
	BundleDir string `json:"bundleDir,omitempty"`
	// Catalogs are the operator catalogs to mirror.
	Catalogs []string `json:"catalogs,omitempty"`
	Skip     Skip     `json:"skip,omitempty"`
	// VerifyChecksums checks client downloads against the published sums.
	VerifyChecksums bool `json:"verifyChecksums,omitempty"`
	// ArchiveSize is the size of the segmented archive in GiB
	ArchiveSize int64 `json:"archiveSize,omitempty"`
	// DeletePullSecret removes the stored pull secret after the run.
	DeletePullSecret bool    `json:"deletePullSecret,omitempty"`
	Runtime          Runtime `json:"runtime,omitempty"`
}

// Skip disables phases of a bundle run.
type Skip struct {
	// Existing keeps artifacts that are already on disk.
	Existing bool `json:"existing,omitempty"`
	Release  bool `json:"release,omitempty"`
	Catalogs bool `json:"catalogs,omitempty"`
	Rhcos    bool `json:"rhcos,omitempty"`
}

// Runtime configures the container the tooling runs in.
type Runtime struct {
	// ContainerRuntime is podman or docker.
	ContainerRuntime string `json:"containerRuntime,omitempty"`
	Image            string `json:"image,omitempty"`
	// ContextDir is the image build context, mounted into the shell.
	ContextDir string `json:"contextDir,omitempty"`
	// Env selects host variables forwarded into the container.
	Env runtime.EnvPassthrough `json:"env,omitempty"`
}

// LoadConfig decodes a BundleConfiguration. Unknown fields are rejected.
func LoadConfig(data []byte) (c BundleConfiguration, err error) {

	gvk := GroupVersion.WithKind(BundleConfigurationKind)

	if data, err = yaml.YAMLToJSON(data); err != nil {
		return c, fmt.Errorf("yaml to json %s: %v", gvk, err)
	}

	dec := json.NewDecoder(bytes.NewBuffer(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("decode %s: %v", gvk, err)
	}

	c.SetGroupVersionKind(gvk)

	return c, nil
}
