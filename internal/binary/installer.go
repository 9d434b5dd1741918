package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
	"github.com/ZebulonRouseFrantzich/cdx/internal/platform"
)

// Config holds configuration for the installer
type Config struct {
	Client httpclient.Client
	// Verifier defaults to one without a keyring.
	Verifier *Verifier
	// Sudo allows `sudo -n install` when the target directory is not
	// writable.
	Sudo bool
	// Runner executes sudo. Defaults to os/exec.
	Runner platform.CommandRunner
	// TempDir is the parent of the per-install scratch directory.
	TempDir string
	Logger  *slog.Logger
}

// Installer orchestrates download, verification and installation.
type Installer struct {
	downloader *Downloader
	extractor  *Extractor
	verifier   *Verifier
	sudo       bool
	run        platform.CommandRunner
	tempDir    string
	logger     *slog.Logger
}

// NewInstaller creates a new installer
func NewInstaller(config Config) (*Installer, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("Client is required")
	}
	if config.Verifier == nil {
		config.Verifier = NewVerifier(nil)
	}
	if config.Runner == nil {
		config.Runner = platform.ExecRunner
	}
	return &Installer{
		downloader: NewDownloader(config.Client),
		extractor:  NewExtractor(),
		verifier:   config.Verifier,
		sudo:       config.Sudo,
		run:        config.Runner,
		tempDir:    config.TempDir,
		logger:     logging.Category(config.Logger, "install"),
	}, nil
}

// Install downloads req.URL and replaces req.Target with the binary it
// contains. On any error the target is left as it was.
func (i *Installer) Install(ctx context.Context, req Request) (*Result, error) {
	if req.Target == "" || req.URL == "" {
		return nil, fmt.Errorf("install requires a target and a URL")
	}
	start := time.Now()

	scratch, err := os.MkdirTemp(i.tempDir, "cdx-install-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	assetName := req.AssetName
	if assetName == "" {
		assetName = path.Base(req.URL)
	}
	assetPath := filepath.Join(scratch, "asset")

	n, err := i.downloader.DownloadToFile(ctx, req.URL, req.Header, assetPath)
	if err != nil {
		return nil, err
	}
	i.logger.Debug("downloaded", "asset", assetName, "size", humanize.Bytes(uint64(n)))

	res := &Result{Path: req.Target, Version: req.Version, Bytes: n}

	if req.SHA256 != "" {
		if err := i.verifier.VerifySHA256(assetPath, req.SHA256); err != nil {
			return nil, err
		}
		res.Verified = append(res.Verified, VerificationSHA256)
	}

	if req.SignatureURL != "" && i.verifier.HasKeyring() {
		sigPath := filepath.Join(scratch, "asset.sig")
		if _, err := i.downloader.DownloadToFile(ctx, req.SignatureURL, req.Header, sigPath); err != nil {
			return nil, fmt.Errorf("download signature: %w", err)
		}
		if err := i.verifier.VerifySignature(assetPath, sigPath); err != nil {
			return nil, err
		}
		res.Verified = append(res.Verified, VerificationGPG)
	}

	binPath := assetPath
	if format := DetectFormat(assetName); format != FormatNone {
		prefix := req.BinaryPrefix
		if prefix == "" {
			prefix = DefaultBinaryPrefix
		}
		binPath, err = i.extractor.ExtractBinary(assetPath, format, filepath.Join(scratch, "extract"), prefix)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", assetName, err)
		}
	}

	if err := SetExecutable(binPath); err != nil {
		return nil, err
	}

	res.Privileged, err = i.place(ctx, binPath, req.Target)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

// place moves src over target. privileged reports whether sudo was used.
func (i *Installer) place(ctx context.Context, src, target string) (privileged bool, err error) {
	dir := filepath.Dir(target)
	if unix.Access(dir, unix.W_OK) == nil {
		return false, replaceFile(src, target)
	}
	if !i.sudo {
		return false, fmt.Errorf("install %s: %w", target, ErrNotWritable)
	}
	if out, err := i.run(ctx, "sudo", "-n", "install", "-m", "755", src, target); err != nil {
		return true, fmt.Errorf("sudo install %s: %w: %s", target, err, strings.TrimSpace(string(out)))
	}
	return true, nil
}

// replaceFile copies src next to target and renames it into place, so a
// running target keeps its old inode.
func replaceFile(src, target string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".new-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanupNeeded := true
	defer func() {
		tmp.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy binary: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		return fmt.Errorf("chmod binary: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename into %s: %w", target, err)
	}
	cleanupNeeded = false
	return nil
}

// IsIntegrityError reports whether err came from digest or signature
// verification.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
