package keys

import (
	"crypto/sha256"
	"fmt"

	"github.com/firefly-zero/firefly-cli/rom"
)

// DeriveSeed deterministically derives an author's seed from a root seed.
//
// CI setups keep a single root seed secret and derive every author key
// from it instead of storing one key per author.
func DeriveSeed(root []byte, author string) ([]byte, error) {
	if len(root) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := rom.ValidateID(author); err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, author, "invalid author id", err)
	}

	h := sha256.New()
	_, _ = h.Write(root)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("firefly-rom-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("author:"))
	_, _ = h.Write([]byte(author))
	return h.Sum(nil)[:SeedSize], nil
}
