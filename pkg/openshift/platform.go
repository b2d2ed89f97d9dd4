package openshift

import (
	"fmt"
	"strings"
)

// Platforms lists the install targets an RHCOS image can be bundled for.
var Platforms = []string{
	"aws",
	"azure",
	"gcp",
	"metal",
	"openstack",
	"vmware",
}

// InvalidPlatformError is returned for a platform that is not supported
// or not present in the RHCOS image manifest.
type InvalidPlatformError struct {
	Platform string
	Valid    []string
}

func (e *InvalidPlatformError) Error() string {
	if len(e.Valid) == 0 {
		return fmt.Sprintf("invalid OpenShift platform %q", e.Platform)
	}
	return fmt.Sprintf("invalid OpenShift platform %q, must be one of: %s", e.Platform, strings.Join(e.Valid, ", "))
}

// ValidatePlatform checks platform against Platforms.
func ValidatePlatform(platform string) error {
	for _, p := range Platforms {
		if p == platform {
			return nil
		}
	}
	return &InvalidPlatformError{Platform: platform, Valid: Platforms}
}
