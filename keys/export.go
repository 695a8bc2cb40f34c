package keys

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/firefly-zero/firefly-cli/rom"
)

// PublicKey is an author's public key together with its algorithm.
type PublicKey struct {
	Alg   Alg
	Bytes []byte
}

// String formats the key as "alg:base64", the form stored in pub/<author>.
func (k PublicKey) String() string {
	return k.Alg.String() + ":" + base64.StdEncoding.EncodeToString(k.Bytes)
}

// Equal reports whether both keys have the same algorithm and bytes.
func (k PublicKey) Equal(other PublicKey) bool {
	return k.Alg == other.Alg && bytes.Equal(k.Bytes, other.Bytes)
}

// Check verifies that the key length matches its algorithm.
func (k PublicKey) Check() error {
	if !k.Alg.Valid() {
		return rom.Errorf(rom.KindSchemaViolation, k.Alg.String(), "unsupported key algorithm")
	}
	if l := len(k.Bytes); l != k.Alg.PublicKeySize() {
		return rom.Errorf(rom.KindSchemaViolation, k.Alg.String(), "public key must be %d bytes, got %d", k.Alg.PublicKeySize(), l)
	}
	return nil
}

// Fingerprint is the sha256 of the raw public key bytes.
func (k PublicKey) Fingerprint() [32]byte {
	return sha256.Sum256(k.Bytes)
}

// ParsePublicKey parses the "alg:base64" form.
func ParsePublicKey(s string) (PublicKey, error) {
	name, b64, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return PublicKey{}, rom.Errorf(rom.KindSchemaViolation, "", "public key must look like alg:base64")
	}
	alg, err := ParseAlg(name)
	if err != nil || name == "" {
		return PublicKey{}, rom.Errorf(rom.KindSchemaViolation, name, "unsupported key algorithm")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return PublicKey{}, rom.Wrap(rom.KindSchemaViolation, name, "decode public key", fmt.Errorf("base64: %w", err))
	}
	k := PublicKey{Alg: alg, Bytes: raw}
	if err := k.Check(); err != nil {
		return PublicKey{}, err
	}
	return k, nil
}
