package binary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrNoKeyring is returned by VerifySignature when no keyring is loaded.
var ErrNoKeyring = errors.New("no signing keyring configured")

// Verifier checks downloads against declared digests and detached
// signatures.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier. keyring may be empty, which disables
// signature checks.
func NewVerifier(keyring openpgp.EntityList) *Verifier {
	return &Verifier{keyring: keyring}
}

// HasKeyring reports whether signatures can be checked.
func (v *Verifier) HasKeyring() bool {
	return v != nil && len(v.keyring) > 0
}

// VerifySHA256 compares the file's digest with expected, ignoring case and
// surrounding whitespace.
func (v *Verifier) VerifySHA256(path, expected string) error {
	actual, err := FileSHA256(path)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}
	expected = strings.TrimSpace(expected)
	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{Method: VerificationSHA256, Expected: expected, Actual: actual}
	}
	return nil
}

// VerifySignature checks an armored or binary detached signature.
func (v *Verifier) VerifySignature(path, signaturePath string) error {
	if !v.HasKeyring() {
		return ErrNoKeyring
	}

	binaryFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open binary: %w", err)
	}
	defer binaryFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, binaryFile, sigFile, nil)
	if err != nil {
		binaryFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(v.keyring, binaryFile, sigFile, nil)
	}
	if err != nil {
		return &IntegrityError{Method: VerificationGPG, Err: err}
	}
	return nil
}

// FileSHA256 returns the lowercase hex SHA-256 of a file.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
