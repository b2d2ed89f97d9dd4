package archive

import (
	"archive/tar"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type Archiver interface {
	String() string
	Archive([]string, string) error
	Unarchive(string, string) error
	Extract(string, string, string) error
	Write(archiver.File) error
	Create(io.Writer) error
	Open(io.Reader, int64) error
	Read() (archiver.File, error)
	Close() error
	Walk(string, archiver.WalkFunc) error
}

// MemberNotFoundError is returned when a requested file is not part of
// an archive.
type MemberNotFoundError struct {
	Archive string
	Member  string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found in archive %s", e.Member, e.Archive)
}

// NewArchiver create a new archiver for tar archive manipulation.
// The format is chosen from the extension of name.
func NewArchiver(name string) (Archiver, error) {

	// Check extension of target file
	f, err := archiver.ByExtension(name)
	if err != nil {
		return nil, fmt.Errorf("error parsing type %s for format: %v", name, err)
	}

	mytar := &archiver.Tar{
		OverwriteExisting:      true,
		MkdirAll:               true,
		ImplicitTopLevelFolder: false,
		StripComponents:        0,
		ContinueOnError:        false,
	}

	switch v := f.(type) {
	case *archiver.Tar:
		return mytar, nil
	case *archiver.TarGz:
		v.Tar = mytar
		v.CompressionLevel = flate.DefaultCompression
		return v, nil
	default:
		return nil, fmt.Errorf("format does not support customization: %s", f)
	}
}

// ExtractMembers unpacks only the named members of the archive at src
// into destDir. Every member must be present in the archive; files
// already in destDir do not count.
func ExtractMembers(fs afero.Fs, src, destDir string, members ...string) error {
	wanted := map[string]bool{}
	for _, m := range members {
		wanted[m] = false
	}

	err := walkArchive(fs, src, func(f archiver.File, name string) error {
		found, ok := wanted[name]
		if !ok || found || !f.Mode().IsRegular() {
			return nil
		}
		logrus.Infof("Extracting %s from %s", name, src)
		if err := writeFile(fs, filepath.Join(destDir, name), f, f.Mode().Perm()); err != nil {
			return fmt.Errorf("extracting %s from %s: %v", name, src, err)
		}
		wanted[name] = true
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range members {
		if !wanted[m] {
			return &MemberNotFoundError{Archive: src, Member: m}
		}
	}
	return nil
}

// ExtractArchive will unpack the archive at src into dest.
func ExtractArchive(fs afero.Fs, src, dest string) error {
	return walkArchive(fs, src, func(f archiver.File, name string) error {
		target, err := sanitizeArchivePath(dest, name)
		if err != nil {
			return err
		}
		switch {
		case f.IsDir():
			return fs.MkdirAll(target, 0755)
		case f.Mode().IsRegular():
			return writeFile(fs, target, f, f.Mode().Perm())
		default:
			logrus.Debugf("Skipping %s in %s: not a regular file", name, src)
			return nil
		}
	})
}

// walkArchive calls fn for every entry of the archive at src with the
// entry's cleaned path inside the archive.
func walkArchive(fs afero.Fs, src string, fn func(archiver.File, string) error) error {
	a, err := NewArchiver(src)
	if err != nil {
		return err
	}
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("opening archive file: %v", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := a.Open(in, info.Size()); err != nil {
		return fmt.Errorf("opening archive %s: %v", src, err)
	}
	defer a.Close()

	for {
		f, err := a.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %v", src, err)
		}
		name := f.Name()
		if hdr, ok := f.Header.(*tar.Header); ok {
			name = hdr.Name
		}
		name = strings.TrimPrefix(path.Clean("/"+name), "/")
		if err := fn(f, name); err != nil {
			return err
		}
	}
}

// writeFile writes r to a temporary file next to dest and renames it
// into place, so dest is only replaced by a complete copy.
func writeFile(fs afero.Fs, dest string, r io.Reader, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	partial := dest + ".part"
	out, err := fs.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = fs.Remove(partial)
		return err
	}
	if err := out.Close(); err != nil {
		_ = fs.Remove(partial)
		return err
	}
	return fs.Rename(partial, dest)
}

// sanitizeArchivePath checks for filepath traversal attacks when extracting archives.
func sanitizeArchivePath(dir, name string) (string, error) {
	v := filepath.Join(dir, name)
	if v == filepath.Clean(dir) || strings.HasPrefix(v, filepath.Clean(dir)+string(os.PathSeparator)) {
		return v, nil
	}
	return "", fmt.Errorf("content filepath is tainted: %s", v)
}

// CreateSplitArchive will create multiple tar archives from source directory
// and record the checksum of each one in destDir/sha256sum.txt.
func CreateSplitArchive(fs afero.Fs, a Archiver, destDir, prefix string, maxSplitSize int64, sourceDir string) error {

	if err := fs.MkdirAll(destDir, os.ModePerm); err != nil {
		return err
	}

	// Declare split variables
	splitNum := 0
	splitSize := int64(0)
	splitPath := splitName(a, destDir, prefix, splitNum)
	shaPath := filepath.Join(destDir, ChecksumFile)

	shaFile, err := fs.Create(shaPath)
	if err != nil {
		return fmt.Errorf("creating %s: %v", shaPath, err)
	}
	defer shaFile.Close()

	splitFile, err := fs.Create(splitPath)
	if err != nil {
		return fmt.Errorf("creating %s: %v", splitPath, err)
	}

	logrus.Infof("Creating archive %s", splitPath)
	if err := a.Create(splitFile); err != nil {
		return fmt.Errorf("creating archive %s: %v", splitPath, err)
	}

	sourceInfo, err := fs.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("%s: stat: %v", sourceDir, err)
	}

	// closeSplit finishes the current archive and records its checksum.
	closeSplit := func() error {
		if err := a.Close(); err != nil {
			return fmt.Errorf("closing archive %s: %v", splitPath, err)
		}
		if err := splitFile.Close(); err != nil {
			return err
		}
		if err := AppendChecksum(fs, shaFile, splitPath); err != nil {
			return fmt.Errorf("error appending checksum for %s: %v", splitPath, err)
		}
		return nil
	}

	err = afero.Walk(fs, sourceDir, func(fpath string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("traversing %s: %v", fpath, err)
		}
		if info == nil {
			return fmt.Errorf("no file info")
		}

		// build the name to be used within the archive
		nameInArchive, err := archiver.NameInArchive(sourceInfo, sourceDir, fpath)
		if err != nil {
			return fmt.Errorf("creating %s: %v", nameInArchive, err)
		}

		var file io.ReadCloser
		var size int64
		if info.Mode().IsRegular() {
			size = info.Size()
			file, err = fs.Open(fpath)
			if err != nil {
				return fmt.Errorf("%s: opening: %v", fpath, err)
			}
			defer file.Close()
		}

		f := archiver.File{
			FileInfo: archiver.FileInfo{
				FileInfo:   info,
				CustomName: nameInArchive,
			},
			ReadCloser: file,
		}

		// If the file is too large create a new one
		if splitSize > 0 && size+splitSize > maxSplitSize {
			if err := closeSplit(); err != nil {
				return err
			}

			splitNum++
			splitSize = int64(0)
			splitPath = splitName(a, destDir, prefix, splitNum)

			logrus.Infof("Creating archive %s", splitPath)
			splitFile, err = fs.Create(splitPath)
			if err != nil {
				return fmt.Errorf("creating %s: %v", splitPath, err)
			}
			if err := a.Create(splitFile); err != nil {
				return fmt.Errorf("creating archive %s: %v", splitPath, err)
			}
		}

		if err := a.Write(f); err != nil {
			return fmt.Errorf("%s: writing: %s", fpath, err)
		}

		splitSize += size
		return nil
	})
	if err != nil {
		_ = a.Close()
		_ = splitFile.Close()
		return err
	}

	return closeSplit()
}

func splitName(a Archiver, destDir, prefix string, num int) string {
	return filepath.Join(destDir, fmt.Sprintf("%s_%06d.%s", prefix, num, a.String()))
}
