package supervisor

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewCapturePath returns a fresh capture log path under dir, or the system
// temp dir when dir is empty.
func NewCapturePath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cdx-"+uuid.NewString()+".log")
}
