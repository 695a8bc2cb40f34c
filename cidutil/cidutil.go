package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// FromDigest wraps an already computed digest into a CIDv1 with the "raw"
// multicodec. hashName is "sha2-256" or "sha3-256".
func FromDigest(hashName string, digest []byte) (cid.Cid, error) {
	code, ok := multihash.Names[hashName]
	if !ok {
		return cid.Undef, fmt.Errorf("cidutil: unknown hash %q", hashName)
	}
	mh, err := multihash.Encode(digest, code)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Digest extracts the hash name and raw digest from a CID.
func Digest(id cid.Cid) (string, []byte, error) {
	if !id.Defined() {
		return "", nil, fmt.Errorf("cidutil: undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return "", nil, err
	}
	return dec.Name, dec.Digest, nil
}
