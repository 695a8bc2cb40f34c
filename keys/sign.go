package keys

import (
	"crypto/ed25519"
	"crypto/subtle"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Keypair is a private key ready for signing.
type Keypair struct {
	alg  Alg
	seed []byte
	ed   ed25519.PrivateKey
	dl   *mode3.PrivateKey
	pub  PublicKey
}

// NewKeypair expands a seed into a keypair. The same seed always yields
// the same keys.
func NewKeypair(alg Alg, seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, rom.Errorf(rom.KindSchemaViolation, alg.String(), "seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	kp := &Keypair{alg: alg, seed: append([]byte(nil), seed...)}
	switch alg {
	case AlgEd25519:
		kp.ed = ed25519.NewKeyFromSeed(seed)
		kp.pub = PublicKey{Alg: alg, Bytes: append([]byte(nil), kp.ed.Public().(ed25519.PublicKey)...)}
	case AlgDilithium3:
		var s [mode3.SeedSize]byte
		copy(s[:], seed)
		pk, sk := mode3.NewKeyFromSeed(&s)
		kp.dl = sk
		kp.pub = PublicKey{Alg: alg, Bytes: pk.Bytes()}
	default:
		return nil, rom.Errorf(rom.KindSchemaViolation, alg.String(), "unsupported key algorithm")
	}
	return kp, nil
}

// Alg returns the key algorithm.
func (kp *Keypair) Alg() Alg { return kp.alg }

// Public returns the public half.
func (kp *Keypair) Public() PublicKey { return kp.pub }

// Seed returns a copy of the seed.
func (kp *Keypair) Seed() []byte { return append([]byte(nil), kp.seed...) }

// Signer signs package digests with an author key.
type Signer struct {
	Key *Keypair
}

// Sign signs digest, which was produced by hashAlg.
//
// Both algorithms are deterministic, so signing the same digest with the
// same key always gives the same block.
func (s Signer) Sign(digest []byte, hashAlg pack.HashAlg) (*Signature, error) {
	if s.Key == nil {
		return nil, rom.Errorf(rom.KindKeyNotFound, "", "no signing key configured")
	}
	if !hashAlg.Valid() || len(digest) != hashAlg.Size() {
		return nil, rom.Errorf(rom.KindSchemaViolation, hashAlg.String(), "digest is %d bytes, want %d", len(digest), hashAlg.Size())
	}
	sig := &Signature{
		Alg:         s.Key.alg,
		HashAlg:     hashAlg,
		Fingerprint: s.Key.pub.Fingerprint(),
		Digest:      append([]byte(nil), digest...),
	}
	switch s.Key.alg {
	case AlgEd25519:
		sig.Sig = ed25519.Sign(s.Key.ed, digest)
	case AlgDilithium3:
		sig.Sig = make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.Key.dl, digest, sig.Sig)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of digest by pub.
//
// It never fails loudly: any mismatch of digest, fingerprint, algorithm,
// key length or signature bytes yields false.
func Verify(digest []byte, sig *Signature, pub PublicKey) bool {
	if sig == nil || pub.Alg != sig.Alg || pub.Check() != nil {
		return false
	}
	if subtle.ConstantTimeCompare(digest, sig.Digest) != 1 {
		return false
	}
	fp := pub.Fingerprint()
	if subtle.ConstantTimeCompare(fp[:], sig.Fingerprint[:]) != 1 {
		return false
	}
	if len(sig.Sig) != sig.Alg.SignatureSize() {
		return false
	}
	switch pub.Alg {
	case AlgEd25519:
		return ed25519.Verify(ed25519.PublicKey(pub.Bytes), digest, sig.Sig)
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub.Bytes); err != nil {
			return false
		}
		return mode3.Verify(&pk, digest, sig.Sig)
	default:
		return false
	}
}
