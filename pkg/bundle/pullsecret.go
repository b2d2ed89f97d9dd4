package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// InvalidPullSecretError is returned when the pull secret is not JSON.
type InvalidPullSecretError struct {
	err error
}

func (e *InvalidPullSecretError) Error() string {
	return fmt.Sprintf("invalid pull secret: %v", e.err)
}

func (e *InvalidPullSecretError) Unwrap() error {
	return e.err
}

// SavePullSecret writes secret to bundleDir/pull-secret.json for
// consumption by oc and returns its path.
func SavePullSecret(fs afero.Fs, bundleDir string, secret []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(secret)); err != nil {
		return "", &InvalidPullSecretError{err: err}
	}

	path := filepath.Join(bundleDir, PullSecretFile)
	logrus.Infof("Saving pull secret to %s", path)
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("save pull secret: %w", err)
	}
	return path, nil
}

// DeletePullSecret removes the pull secret at path if it exists.
func DeletePullSecret(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete pull secret: %w", err)
	}
	logrus.Debugf("Removed pull secret %s", path)
	return nil
}
