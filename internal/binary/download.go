package binary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
)

// Downloader streams URLs to files through the shared client.
type Downloader struct {
	client httpclient.Client
}

// NewDownloader creates a new downloader
func NewDownloader(client httpclient.Client) *Downloader {
	return &Downloader{client: client}
}

// DownloadToFile downloads url to destPath and returns the byte count.
// destPath only appears once the body has been fully written.
func (d *Downloader) DownloadToFile(ctx context.Context, url string, header http.Header, destPath string) (int64, error) {
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(destDir, filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	n, err := d.client.Download(ctx, &httpclient.Request{Method: http.MethodGet, URL: url, Header: header}, tmpFile)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", url, err)
	}

	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return n, fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return n, nil
}
