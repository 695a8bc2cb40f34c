package keys

import (
	"encoding/binary"

	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
)

// SignatureMagic opens every encoded signature block.
const SignatureMagic = "FFSG"

// Signature is the content of the _sig member.
type Signature struct {
	Alg         Alg
	HashAlg     pack.HashAlg
	Fingerprint [32]byte
	Digest      []byte
	Sig         []byte
}

// Encode serializes the signature as
// magic | alg u8 | hashAlg u8 | fingerprint [32] | digestLen u8 | digest | sigLen u16 | sig.
func (s *Signature) Encode() ([]byte, error) {
	if len(s.Digest) > 0xFF {
		return nil, rom.Errorf(rom.KindSchemaViolation, rom.Sig, "digest is too long")
	}
	if len(s.Sig) > 0xFFFF {
		return nil, rom.Errorf(rom.KindSchemaViolation, rom.Sig, "signature is too long")
	}
	out := make([]byte, 0, len(SignatureMagic)+2+32+1+len(s.Digest)+2+len(s.Sig))
	out = append(out, SignatureMagic...)
	out = append(out, byte(s.Alg), byte(s.HashAlg))
	out = append(out, s.Fingerprint[:]...)
	out = append(out, byte(len(s.Digest)))
	out = append(out, s.Digest...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(s.Sig)))
	out = append(out, s.Sig...)
	return out, nil
}

// DecodeSignature parses a _sig member.
//
// Malformed blocks are reported as SignatureMismatch: a damaged signature
// block is indistinguishable from a forged one.
func DecodeSignature(b []byte) (*Signature, error) {
	bad := func(msg string) (*Signature, error) {
		return nil, rom.Errorf(rom.KindSignatureMismatch, rom.Sig, "%s", msg)
	}
	const head = len(SignatureMagic) + 2 + 32 + 1
	if len(b) < head || string(b[:len(SignatureMagic)]) != SignatureMagic {
		return bad("not a signature block")
	}
	s := &Signature{
		Alg:     Alg(b[4]),
		HashAlg: pack.HashAlg(b[5]),
	}
	if !s.Alg.Valid() {
		return bad("unknown signature algorithm")
	}
	if !s.HashAlg.Valid() {
		return bad("unknown hash algorithm")
	}
	copy(s.Fingerprint[:], b[6:38])
	n := int(b[38])
	if n != s.HashAlg.Size() {
		return bad("digest length does not match the hash algorithm")
	}
	rest := b[head:]
	if len(rest) < n+2 {
		return bad("truncated signature block")
	}
	s.Digest = append([]byte(nil), rest[:n]...)
	rest = rest[n:]
	m := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != m {
		return bad("signature length does not match the block")
	}
	s.Sig = append([]byte(nil), rest...)
	return s, nil
}
