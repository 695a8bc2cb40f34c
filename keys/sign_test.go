package keys

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
)

func testSeed(b byte) []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}

func testDigest(msg string) []byte {
	d := sha256.Sum256([]byte(msg))
	return d[:]
}

func TestSign_VerifiesForEveryAlgorithm(t *testing.T) {
	for _, alg := range []Alg{AlgEd25519, AlgDilithium3} {
		t.Run(alg.String(), func(t *testing.T) {
			kp, err := NewKeypair(alg, testSeed(1))
			if err != nil {
				t.Fatalf("NewKeypair: %v", err)
			}
			digest := testDigest("rom")
			sig, err := Signer{Key: kp}.Sign(digest, pack.HashSHA256)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if len(sig.Sig) != alg.SignatureSize() {
				t.Fatalf("unexpected signature size: got %d want %d", len(sig.Sig), alg.SignatureSize())
			}
			if !Verify(digest, sig, kp.Public()) {
				t.Fatalf("signature did not verify")
			}

			again, err := Signer{Key: kp}.Sign(digest, pack.HashSHA256)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if !bytes.Equal(again.Sig, sig.Sig) {
				t.Fatalf("expected deterministic signatures")
			}
		})
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	kp, err := NewKeypair(AlgEd25519, testSeed(1))
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	other, err := NewKeypair(AlgEd25519, testSeed(2))
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	digest := testDigest("rom")
	sig, err := Signer{Key: kp}.Sign(digest, pack.HashSHA256)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	flipped := append([]byte(nil), digest...)
	flipped[0] ^= 1
	if Verify(flipped, sig, kp.Public()) {
		t.Fatalf("verified a different digest")
	}
	if Verify(digest, sig, other.Public()) {
		t.Fatalf("verified with the wrong key")
	}

	bad := *sig
	bad.Sig = append([]byte(nil), sig.Sig...)
	bad.Sig[10] ^= 0x80
	if Verify(digest, &bad, kp.Public()) {
		t.Fatalf("verified a flipped signature bit")
	}

	short := kp.Public()
	short.Bytes = short.Bytes[:10]
	if Verify(digest, sig, short) {
		t.Fatalf("verified with a truncated key")
	}

	wrongAlg := kp.Public()
	wrongAlg.Alg = AlgDilithium3
	if Verify(digest, sig, wrongAlg) {
		t.Fatalf("verified with a mismatched algorithm")
	}
	if Verify(digest, nil, kp.Public()) {
		t.Fatalf("verified a nil signature")
	}
}

func TestSign_Errors(t *testing.T) {
	if _, err := (Signer{}).Sign(testDigest("x"), pack.HashSHA256); !rom.IsKind(err, rom.KindKeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
	kp, err := NewKeypair(AlgEd25519, testSeed(1))
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	if _, err := (Signer{Key: kp}).Sign([]byte{1, 2, 3}, pack.HashSHA256); err == nil {
		t.Fatalf("accepted a short digest")
	}
	if _, err := NewKeypair(AlgEd25519, []byte{1}); err == nil {
		t.Fatalf("accepted a short seed")
	}
	if _, err := NewKeypair(Alg(9), testSeed(1)); err == nil {
		t.Fatalf("accepted an unknown algorithm")
	}
}

func TestSignature_EncodeDecode(t *testing.T) {
	kp, err := NewKeypair(AlgDilithium3, testSeed(3))
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	digest := testDigest("rom")
	sig, err := Signer{Key: kp}.Sign(digest, pack.HashSHA256)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw, err := sig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(raw[:4]) != SignatureMagic || raw[4] != byte(AlgDilithium3) || raw[5] != byte(pack.HashSHA256) {
		t.Fatalf("unexpected header % x", raw[:6])
	}

	got, err := DecodeSignature(raw)
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	if !Verify(digest, got, kp.Public()) {
		t.Fatalf("decoded signature did not verify")
	}

	cases := map[string][]byte{
		"empty":     nil,
		"magic":     append([]byte("XXSG"), raw[4:]...),
		"alg":       patch(raw, 4, 7),
		"hash alg":  patch(raw, 5, 7),
		"digestLen": patch(raw, 38, 31),
		"truncated": raw[:len(raw)-1],
		"trailing":  append(append([]byte(nil), raw...), 0),
	}
	for name, b := range cases {
		if _, err := DecodeSignature(b); !rom.IsKind(err, rom.KindSignatureMismatch) {
			t.Fatalf("%s: expected SignatureMismatch, got %v", name, err)
		}
	}
}

func patch(b []byte, i int, v byte) []byte {
	out := append([]byte(nil), b...)
	out[i] = v
	return out
}

func TestPublicKey_Format(t *testing.T) {
	kp, err := NewKeypair(AlgEd25519, testSeed(4))
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	s := kp.Public().String()
	parsed, err := ParsePublicKey(s)
	if err != nil {
		t.Fatalf("ParsePublicKey(%q): %v", s, err)
	}
	if !parsed.Equal(kp.Public()) {
		t.Fatalf("public key changed across formatting")
	}
	for _, in := range []string{"", "ed25519", "rsa:AAAA", "ed25519:!!", "ed25519:AAAA", ":AAAA"} {
		if _, err := ParsePublicKey(in); !rom.IsKind(err, rom.KindSchemaViolation) {
			t.Fatalf("ParsePublicKey(%q): expected SchemaViolation, got %v", in, err)
		}
	}
}
