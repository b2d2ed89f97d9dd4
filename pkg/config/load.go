package config

import (
	"fmt"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/RedHatGov/openshift4-mirror/pkg/config/v1alpha1"
)

// ReadConfig loads the configuration file at configPath.
func ReadConfig(configPath string) (v1alpha1.BundleConfiguration, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return v1alpha1.BundleConfiguration{}, err
	}
	return LoadConfig(data)
}

// LoadConfig decodes data according to its apiVersion and kind.
func LoadConfig(data []byte) (c v1alpha1.BundleConfiguration, err error) {
	typeMeta, err := getTypeMeta(data)
	if err != nil {
		return c, err
	}

	switch typeMeta.GroupVersionKind() {
	case v1alpha1.GroupVersion.WithKind(v1alpha1.BundleConfigurationKind):
		return v1alpha1.LoadConfig(data)
	}

	return c, fmt.Errorf("config GVK not recognized: %s", typeMeta.GroupVersionKind())
}

func getTypeMeta(data []byte) (typeMeta metav1.TypeMeta, err error) {
	if err := yaml.Unmarshal(data, &typeMeta); err != nil {
		return typeMeta, fmt.Errorf("get type meta: %v", err)
	}
	return typeMeta, nil
}
