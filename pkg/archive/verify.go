package archive

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ChecksumFile is the sha256sum(1) compatible file published next to
// client downloads and written next to split archives.
const ChecksumFile = "sha256sum.txt"

// ChecksumError is returned when a file does not match its known checksum.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("calculating checksum for %v: got %s, expected %s", e.Path, e.Actual, e.Expected)
}

// AppendChecksum appends "<sha256>  <basename>" for archivePath to hashFile.
func AppendChecksum(fs afero.Fs, hashFile io.Writer, archivePath string) error {
	sum, err := generateCheckSum(fs, archivePath)
	if err != nil {
		return fmt.Errorf("error generating checksum for file %s: %v", archivePath, err)
	}
	_, err = fmt.Fprintf(hashFile, "%s  %s\n", sum, filepath.Base(archivePath))
	return err
}

// MapChecksum reads a sha256sum(1) formatted file into a map of
// file name to hex encoded digest.
func MapChecksum(fs afero.Fs, hashPath string) (map[string]string, error) {
	f, err := fs.Open(filepath.Clean(hashPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	checksums := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		// sha256sum marks binary mode with a leading '*'
		checksums[strings.TrimPrefix(fields[1], "*")] = fields[0]
	}
	return checksums, scanner.Err()
}

// VerifyChecksums checks each of files in dir against the checksums listed
// in hashPath.
func VerifyChecksums(fs afero.Fs, hashPath, dir string, files ...string) error {
	checksums, err := MapChecksum(fs, hashPath)
	if err != nil {
		return err
	}
	for _, name := range files {
		known, ok := checksums[name]
		if !ok {
			return fmt.Errorf("no checksum for %s in %s", name, hashPath)
		}
		path := filepath.Join(dir, name)
		actual, err := generateCheckSum(fs, path)
		if err != nil {
			return err
		}
		if actual != known {
			return &ChecksumError{Path: path, Expected: known, Actual: actual}
		}
		logrus.Debugf("Verified checksum of %s", path)
	}
	return nil
}

func generateCheckSum(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}
