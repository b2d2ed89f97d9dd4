package runtime

import (
	"strings"
)

// DefaultEnvPrefix marks host variables that configure the automation.
const DefaultEnvPrefix = "OPENSHIFT_MIRROR_"

// EnvPassthrough selects host environment variables to forward into the
// container.
type EnvPassthrough struct {
	// Prefixes forwards every variable whose name starts with one of them.
	Prefixes []string `json:"prefixes,omitempty"`
	// Names forwards variables by exact name.
	Names []string `json:"names,omitempty"`
}

// DefaultEnvPassthrough forwards OPENSHIFT_MIRROR_* variables.
func DefaultEnvPassthrough() EnvPassthrough {
	return EnvPassthrough{Prefixes: []string{DefaultEnvPrefix}}
}

// Filter returns the KEY=VALUE entries of environ selected by p, in the
// order they appear.
func (p EnvPassthrough) Filter(environ []string) []string {
	var out []string
	for _, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if p.matches(key) {
			out = append(out, kv)
		}
	}
	return out
}

func (p EnvPassthrough) matches(key string) bool {
	for _, prefix := range p.Prefixes {
		if prefix != "" && strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for _, n := range p.Names {
		if n == key {
			return true
		}
	}
	return false
}
