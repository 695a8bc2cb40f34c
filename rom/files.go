package rom

import (
	"errors"
	"fmt"
	"strings"
)

// Member names inside a ROM.
const (
	// Meta is the manifest blob.
	Meta = "_meta"
	// Bin is the processed WebAssembly module.
	Bin = "_bin"
	// Badges describes the achievements provided by the app.
	Badges = "_badges"
	// Boards describes the scoreboards provided by the app.
	Boards = "_boards"
	// Stats is the default play record, copied into the data directory on
	// install.
	Stats = "_stats"

	// Hash holds the package digest.
	Hash = "_hash"
	// Sig holds the encoded signature block.
	Sig = "_sig"
	// Key holds the author's public key.
	Key = "_key"
)

const (
	// MaxMemberNameLen bounds member (asset) names.
	MaxMemberNameLen = 32
	// MaxMemberSize bounds the size of every member.
	MaxMemberSize = 10 * 1024 * 1024
)

// IsSignatureBlock reports whether name is excluded from the package digest.
func IsSignatureBlock(name string) bool {
	return name == Hash || name == Sig || name == Key
}

// IsReserved reports whether name is owned by the toolchain.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, "_")
}

// ValidateMemberName checks a name used for a file inside the ROM.
//
// Toolchain-owned names start with an underscore; asset names must not.
func ValidateMemberName(name string) error {
	if name == "" {
		return errors.New("member name cannot be empty")
	}
	if len(name) > MaxMemberNameLen {
		return fmt.Errorf("member name is too long: %d > %d", len(name), MaxMemberNameLen)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid member name %q", name)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.' {
			continue
		}
		return fmt.Errorf("invalid character %q in member name", char)
	}
	return nil
}
