package binary

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultBinaryPrefix matches the executable inside release archives.
const DefaultBinaryPrefix = "codex"

// ErrNotWritable is returned when the target directory is not writable and
// privilege escalation is unavailable.
var ErrNotWritable = errors.New("target directory is not writable and sudo is unavailable")

// Request describes one install.
type Request struct {
	// Target is the path being replaced.
	Target string
	URL    string
	// Header is sent with the download, e.g. X-API-Key for the launcher.
	Header http.Header
	// AssetName decides the archive format. Defaults to the URL basename.
	AssetName string
	Version   string
	// SHA256 is the expected hex digest of the downloaded artifact.
	SHA256 string
	// SignatureURL points at a detached OpenPGP signature of the artifact.
	SignatureURL string
	// BinaryPrefix selects the file inside an archive. Defaults to codex.
	BinaryPrefix string
}

// VerificationMethod indicates how a download was verified
type VerificationMethod int

const (
	// VerificationNone means no digest or signature was available
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 means the declared digest matched
	VerificationSHA256
	// VerificationGPG means a detached signature verified against the keyring
	VerificationGPG
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Result describes a completed install.
type Result struct {
	Path       string
	Version    string
	Bytes      int64
	Verified   []VerificationMethod
	Privileged bool
	Duration   time.Duration
}

// IntegrityError is returned when a download fails digest or signature
// verification. The target is never modified when it is returned.
type IntegrityError struct {
	Method   VerificationMethod
	Expected string
	Actual   string
	Err      error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s verification failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s mismatch: expected %s, got %s", e.Method, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
