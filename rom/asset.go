package rom

import "fmt"

// AssetKind tells the device how to interpret an asset member.
type AssetKind uint8

const (
	AssetRaw   AssetKind = 0
	AssetImage AssetKind = 1
	AssetAudio AssetKind = 2
)

func (k AssetKind) String() string {
	switch k {
	case AssetRaw:
		return "raw"
	case AssetImage:
		return "image"
	case AssetAudio:
		return "audio"
	default:
		return fmt.Sprintf("asset(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k AssetKind) Valid() bool {
	return k <= AssetAudio
}

// ParseAssetKind is the inverse of AssetKind.String.
func ParseAssetKind(s string) (AssetKind, error) {
	switch s {
	case "raw":
		return AssetRaw, nil
	case "image":
		return AssetImage, nil
	case "audio":
		return AssetAudio, nil
	}
	return 0, Errorf(KindSchemaViolation, s, "unknown asset kind")
}
