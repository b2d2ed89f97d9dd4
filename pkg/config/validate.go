package config

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/RedHatGov/openshift4-mirror/pkg/catalog"
	"github.com/RedHatGov/openshift4-mirror/pkg/config/v1alpha1"
	"github.com/RedHatGov/openshift4-mirror/pkg/openshift"
	"github.com/RedHatGov/openshift4-mirror/pkg/runtime"
)

type validationFunc func(cfg *v1alpha1.BundleConfiguration) error

var validationChecks = []validationFunc{
	validateVersion,
	validatePlatform,
	validateCatalogs,
	validateArchiveSize,
	validateRuntime,
}

// Validate checks the values that are set in cfg. Missing values are
// left to the command line.
func Validate(cfg *v1alpha1.BundleConfiguration) error {
	var errs []error
	for _, check := range validationChecks {
		if err := check(cfg); err != nil {
			errs = append(errs, fmt.Errorf("invalid configuration: %v", err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func validateVersion(cfg *v1alpha1.BundleConfiguration) error {
	if cfg.OpenShiftVersion == "" {
		return nil
	}
	_, err := openshift.ParseVersion(cfg.OpenShiftVersion)
	return err
}

func validatePlatform(cfg *v1alpha1.BundleConfiguration) error {
	if cfg.Platform == "" {
		return nil
	}
	return openshift.ValidatePlatform(cfg.Platform)
}

func validateCatalogs(cfg *v1alpha1.BundleConfiguration) error {
	seen := map[string]bool{}
	for _, c := range cfg.Catalogs {
		if seen[c] {
			return fmt.Errorf("catalog %q: duplicate found in configuration", c)
		}
		seen[c] = true
	}
	return catalog.ValidateNames(cfg.Catalogs)
}

func validateArchiveSize(cfg *v1alpha1.BundleConfiguration) error {
	if cfg.ArchiveSize < 0 {
		return fmt.Errorf("archiveSize %d: must not be negative", cfg.ArchiveSize)
	}
	return nil
}

func validateRuntime(cfg *v1alpha1.BundleConfiguration) error {
	if cfg.Runtime.ContainerRuntime == "" {
		return nil
	}
	return runtime.ValidateEngine(cfg.Runtime.ContainerRuntime)
}
