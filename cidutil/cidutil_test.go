package cidutil

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"
)

func TestFromDigest_MatchesRawSHA256(t *testing.T) {
	data := []byte("rom blob")
	sum := sha256.Sum256(data)
	id, err := FromDigest("sha2-256", sum[:])
	if err != nil {
		t.Fatalf("FromDigest: %v", err)
	}
	if got, want := id.String(), CIDv1RawSHA256(data); got != want {
		t.Fatalf("FromDigest = %s, want %s", got, want)
	}

	name, digest, err := Digest(id)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if name != "sha2-256" || !bytes.Equal(digest, sum[:]) {
		t.Fatalf("unexpected digest %s %x", name, digest)
	}
}

func TestFromDigest_SHA3(t *testing.T) {
	sum := sha3.Sum256([]byte("rom blob"))
	id, err := FromDigest("sha3-256", sum[:])
	if err != nil {
		t.Fatalf("FromDigest: %v", err)
	}
	name, digest, err := Digest(id)
	if err != nil || name != "sha3-256" || !bytes.Equal(digest, sum[:]) {
		t.Fatalf("round trip failed: %s %x %v", name, digest, err)
	}
}

func TestFromDigest_Errors(t *testing.T) {
	if _, err := FromDigest("md5-ish", []byte{1}); err == nil {
		t.Fatalf("unknown hash accepted")
	}
	if _, _, err := Digest(cid.Undef); err == nil {
		t.Fatalf("undefined cid accepted")
	}
}
