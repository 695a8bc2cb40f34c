package pack

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/firefly-zero/firefly-cli/rom"
)

// HashAlg selects the package digest function.
type HashAlg uint8

const (
	HashSHA256   HashAlg = 1
	HashSHA3_256 HashAlg = 2
)

// DefaultHash is used when nothing else is configured.
const DefaultHash = HashSHA256

// String returns the multihash name of h.
func (h HashAlg) String() string {
	switch h {
	case HashSHA256:
		return "sha2-256"
	case HashSHA3_256:
		return "sha3-256"
	default:
		return fmt.Sprintf("hash(%d)", uint8(h))
	}
}

// Valid reports whether h is a known algorithm.
func (h HashAlg) Valid() bool {
	return h == HashSHA256 || h == HashSHA3_256
}

// Size is the digest length in bytes.
func (h HashAlg) Size() int { return 32 }

func (h HashAlg) new() (hash.Hash, error) {
	switch h {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA3_256:
		return sha3.New256(), nil
	default:
		return nil, rom.Errorf(rom.KindSchemaViolation, h.String(), "unknown hash algorithm")
	}
}

// ParseHashAlg accepts "sha256", "sha2-256" and "sha3-256".
func ParseHashAlg(s string) (HashAlg, error) {
	switch s {
	case "", "sha256", "sha2-256":
		return HashSHA256, nil
	case "sha3-256", "sha3":
		return HashSHA3_256, nil
	}
	return 0, rom.Errorf(rom.KindSchemaViolation, s, "unknown hash algorithm")
}
