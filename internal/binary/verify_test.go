package binary

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"       //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// newTestEntity generates a signing key and writes its armored public key to
// a keyring file.
func newTestEntity(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("cdx test", "", "release@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode() error = %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	w.Close()

	path := filepath.Join(t.TempDir(), "release.asc")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write keyring: %v", err)
	}
	return entity, path
}

func signArmored(t *testing.T, entity *openpgp.Entity, data []byte) []byte {
	t.Helper()
	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("ArmoredDetachSign() error = %v", err)
	}
	return sig.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVerifySHA256(t *testing.T) {
	path := writeFile(t, "cdx", []byte("hello"))
	const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	v := NewVerifier(nil)
	if err := v.VerifySHA256(path, strings.ToUpper(helloSHA)+"\n"); err != nil {
		t.Errorf("VerifySHA256() error = %v", err)
	}

	err := v.VerifySHA256(path, strings.Repeat("0", 64))
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("VerifySHA256() error = %v, want IntegrityError", err)
	}
	if ie.Actual != helloSHA || ie.Method != VerificationSHA256 {
		t.Errorf("IntegrityError = %+v", ie)
	}
}

func TestVerifySignature(t *testing.T) {
	entity, keyringPath := newTestEntity(t)
	keyring, err := LoadKeyring(keyringPath)
	if err != nil {
		t.Fatalf("LoadKeyring() error = %v", err)
	}
	v := NewVerifier(keyring)

	data := []byte("codex binary")
	binPath := writeFile(t, "codex", data)
	sigPath := writeFile(t, "codex.sig", signArmored(t, entity, data))

	if err := v.VerifySignature(binPath, sigPath); err != nil {
		t.Errorf("VerifySignature() error = %v", err)
	}

	tampered := writeFile(t, "codex", []byte("codex binary!"))
	if err := v.VerifySignature(tampered, sigPath); !IsIntegrityError(err) {
		t.Errorf("VerifySignature(tampered) error = %v, want IntegrityError", err)
	}

	if err := NewVerifier(nil).VerifySignature(binPath, sigPath); !errors.Is(err, ErrNoKeyring) {
		t.Errorf("VerifySignature() without keyring error = %v", err)
	}
}

func TestLoadKeyring(t *testing.T) {
	if kr, err := LoadKeyring(""); err != nil || kr != nil {
		t.Errorf("LoadKeyring(\"\") = %v, %v", kr, err)
	}
	if _, err := LoadKeyring(writeFile(t, "junk.asc", []byte("not a key"))); err == nil {
		t.Error("expected error for junk keyring")
	}
	if _, err := LoadKeyring(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing keyring")
	}
}
