package binary

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// ErrBinaryNotFound is returned when an archive holds no matching file.
var ErrBinaryNotFound = errors.New("binary not found in archive")

// ArchiveFormat identifies a supported archive type.
type ArchiveFormat int

const (
	// FormatNone means the asset is not an archive
	FormatNone ArchiveFormat = iota
	// FormatTarGz is a gzip-compressed tarball
	FormatTarGz
	// FormatZip is a zip archive
	FormatZip
)

// DetectFormat infers the archive format from an asset name.
func DetectFormat(assetName string) ArchiveFormat {
	name := strings.ToLower(assetName)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	}
	return FormatNone
}

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBinary unpacks the first regular file whose base name starts with
// prefix into destDir and returns its path. Signature and checksum files
// that share the prefix are skipped.
func (e *Extractor) ExtractBinary(archivePath string, format ArchiveFormat, destDir, prefix string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}
	switch format {
	case FormatTarGz:
		return e.extractTarGz(archivePath, destDir, prefix)
	case FormatZip:
		return e.extractZip(archivePath, destDir, prefix)
	}
	return "", fmt.Errorf("unsupported archive format for %s", filepath.Base(archivePath))
}

func (e *Extractor) extractTarGz(archivePath, destDir, prefix string) (string, error) {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return "", fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return "", fmt.Errorf("%w: no %s* entry", ErrBinaryNotFound, prefix)
		}
		if err != nil {
			return "", fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !matchesBinary(header.Name, prefix) {
			continue
		}
		return writeEntry(destDir, header.Name, tarReader)
	}
}

func (e *Extractor) extractZip(archivePath, destDir, prefix string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !f.Mode().IsRegular() || !matchesBinary(f.Name, prefix) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		path, err := writeEntry(destDir, f.Name, rc)
		rc.Close()
		return path, err
	}
	return "", fmt.Errorf("%w: no %s* entry", ErrBinaryNotFound, prefix)
}

func matchesBinary(name, prefix string) bool {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, prefix) {
		return false
	}
	for _, ext := range []string{".sig", ".asc", ".sha256", ".txt", ".md"} {
		if strings.HasSuffix(base, ext) {
			return false
		}
	}
	return true
}

// writeEntry writes one archive member under destDir, rejecting paths that
// escape it.
func writeEntry(destDir, name string, r io.Reader) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir for %s: %w", name, err)
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return "", fmt.Errorf("write file %s: %w", target, err)
	}
	if err := outFile.Close(); err != nil {
		return "", fmt.Errorf("close file %s: %w", target, err)
	}
	return target, nil
}

// SetExecutable sets executable permissions on a file
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
