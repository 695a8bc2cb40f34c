package keys

import (
	"crypto/ed25519"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/firefly-zero/firefly-cli/rom"
)

// Alg identifies a signature algorithm. The numeric values are stored in
// the signature block and must not change.
type Alg uint8

const (
	AlgEd25519    Alg = 1
	AlgDilithium3 Alg = 2

	DefaultAlg = AlgEd25519
)

// SeedSize is the seed length of every supported algorithm.
const SeedSize = 32

func (a Alg) String() string {
	switch a {
	case AlgEd25519:
		return "ed25519"
	case AlgDilithium3:
		return "dilithium3"
	default:
		return "unknown"
	}
}

// Valid reports whether a is a supported algorithm.
func (a Alg) Valid() bool {
	return a == AlgEd25519 || a == AlgDilithium3
}

// PublicKeySize is the length of a public key for a.
func (a Alg) PublicKeySize() int {
	switch a {
	case AlgEd25519:
		return ed25519.PublicKeySize
	case AlgDilithium3:
		return mode3.PublicKeySize
	default:
		return 0
	}
}

// SignatureSize is the length of a raw signature for a.
func (a Alg) SignatureSize() int {
	switch a {
	case AlgEd25519:
		return ed25519.SignatureSize
	case AlgDilithium3:
		return mode3.SignatureSize
	default:
		return 0
	}
}

// ParseAlg parses an algorithm name. The empty string selects DefaultAlg.
func ParseAlg(s string) (Alg, error) {
	switch s {
	case "":
		return DefaultAlg, nil
	case "ed25519":
		return AlgEd25519, nil
	case "dilithium3", "mldsa65":
		return AlgDilithium3, nil
	default:
		return 0, rom.Errorf(rom.KindSchemaViolation, s, "unsupported key algorithm")
	}
}
