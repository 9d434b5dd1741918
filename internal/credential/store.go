package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
)

// ErrNotFound is returned by Load for a missing or unparseable file.
var ErrNotFound = errors.New("credential file not found")

// Store reads and writes the credential file at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.Category(logger, "auth")}
}

// DefaultPath returns ~/.codex/auth.json.
func DefaultPath(home string) string {
	return filepath.Join(home, ".codex", "auth.json")
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load parses the file. Missing and malformed files both yield ErrNotFound.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("unable to read credential file", "path", s.path, "err", err)
		}
		return nil, ErrNotFound
	}
	doc, err := Parse(data)
	if err != nil {
		s.logger.Debug("credential file is not valid JSON", "path", s.path, "err", err)
		return nil, ErrNotFound
	}
	return doc, nil
}

// LastRefresh returns the file's last_refresh, or "" on any failure.
func (s *Store) LastRefresh() string {
	doc, err := s.Load()
	if err != nil {
		return ""
	}
	return doc.LastRefresh()
}

// Write stores doc as indented JSON with owner-only permissions. The file
// is replaced atomically. A refused chmod is logged, not returned.
func (s *Store) Write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	if err := os.Chmod(s.path, 0o600); err != nil {
		s.logger.Warn("unable to restrict credential file permissions", "path", s.path, "err", err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
