package openshift

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver/v4"
)

var (
	// ErrMissingVersion is returned when no OpenShift version was provided.
	ErrMissingVersion = errors.New("an OpenShift version is required")
	// ErrNonSemanticVersion is returned for floating release names such as
	// "latest". Bundles must be pinned to a numbered release.
	ErrNonSemanticVersion = errors.New("non-semantic OpenShift version used, use a numbered release (e.g. 4.14.1)")
)

// floatingTags cannot be reproduced and are rejected.
var floatingTags = map[string]struct{}{
	"latest": {},
	"stable": {},
	"fast":   {},
}

var semverPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Version is an OpenShift release version such as 4.14.1.
type Version struct {
	raw string
}

// ParseVersion validates the release version. Only floating tags and
// empty strings are rejected, anything else is passed through to the
// mirrors and the oc binary as-is.
func ParseVersion(v string) (Version, error) {
	if v == "" {
		return Version{}, ErrMissingVersion
	}
	if _, ok := floatingTags[v]; ok {
		return Version{}, fmt.Errorf("version %q: %w", v, ErrNonSemanticVersion)
	}
	return Version{raw: v}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(v string) Version {
	ver, err := ParseVersion(v)
	if err != nil {
		panic(err)
	}
	return ver
}

func (v Version) String() string {
	return v.raw
}

// Channel returns the MAJOR.MINOR portion of the version, used to select
// catalog index image tags.
func (v Version) Channel() string {
	parts := strings.Split(v.raw, ".")
	if len(parts) < 2 {
		return v.raw
	}
	return parts[0] + "." + parts[1]
}

// RHCOSBranch returns the MAJOR.MINOR installer release branch that pins
// the RHCOS image manifest for this version.
func (v Version) RHCOSBranch() (string, error) {
	match := semverPattern.FindString(v.raw)
	if match == "" {
		return "", fmt.Errorf("version %q does not contain a MAJOR.MINOR.PATCH release", v.raw)
	}
	sv, err := semver.Parse(match)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", match, err)
	}
	return fmt.Sprintf("%d.%d", sv.Major, sv.Minor), nil
}
