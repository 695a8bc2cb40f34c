package meta

import (
	"encoding/binary"
	"fmt"

	"github.com/firefly-zero/firefly-cli/rom"
)

// strSize is the encoded size of a str field of capacity n.
func strSize(n int) int { return 1 + n }

type encoder struct {
	b []byte
}

func (e *encoder) raw(b []byte) { e.b = append(e.b, b...) }
func (e *encoder) u8(v uint8) { e.b = append(e.b, v) }
func (e *encoder) u16(v uint16) { e.b = binary.LittleEndian.AppendUint16(e.b, v) }
func (e *encoder) u32(v uint32) { e.b = binary.LittleEndian.AppendUint32(e.b, v) }
func (e *encoder) i16(v int16) { e.u16(uint16(v)) }
func (e *encoder) zeros(n int) { e.b = append(e.b, make([]byte, n)...) }
func (e *encoder) bytes() []byte { return e.b }

// str writes a length byte followed by s padded with zeros to n bytes.
func (e *encoder) str(field, s string, n int) error {
	if len(s) > n {
		return rom.Errorf(rom.KindSchemaViolation, field, "value is %d bytes, field holds %d", len(s), n)
	}
	e.u8(uint8(len(s)))
	e.b = append(e.b, s...)
	e.zeros(n - len(s))
	return nil
}

// decoder reads fields in order. The first failure sticks and every later
// read returns zero values.
type decoder struct {
	b   []byte
	off int
	err error
}

func (d *decoder) fail(field, format string, args ...any) {
	if d.err == nil {
		d.err = rom.Errorf(rom.KindSchemaViolation, field, "at offset %d: %s", d.off, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) take(field string, n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.b)-d.off < n {
		d.fail(field, "truncated: need %d bytes, have %d", n, len(d.b)-d.off)
		return nil
	}
	v := d.b[d.off : d.off+n]
	d.off += n
	return v
}

func (d *decoder) u8(field string) uint8 {
	if b := d.take(field, 1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16(field string) uint16 {
	if b := d.take(field, 2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u32(field string) uint32 {
	if b := d.take(field, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) i16(field string) int16 { return int16(d.u16(field)) }

// zeros consumes n bytes that must all be zero.
func (d *decoder) zeros(field string, n int) {
	for _, c := range d.take(field, n) {
		if c != 0 {
			d.fail(field, "padding is not zero")
			return
		}
	}
}

func (d *decoder) str(field string, n int) string {
	l := int(d.u8(field))
	b := d.take(field, n)
	if b == nil {
		return ""
	}
	if l > n {
		d.fail(field, "length %d exceeds field size %d", l, n)
		return ""
	}
	for _, c := range b[l:] {
		if c != 0 {
			d.fail(field, "padding is not zero")
			return ""
		}
	}
	return string(b[:l])
}

func (d *decoder) magic(want string) {
	if got := d.take("magic", len(want)); got != nil && string(got) != want {
		d.fail("magic", "want %q, got %q", want, got)
	}
}

func (d *decoder) schema(want uint8) {
	if v := d.u8("schema"); d.err == nil && v != want {
		d.fail("schema", "unsupported schema version %d", v)
	}
}

// finish reports the sticky error or trailing bytes.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.b) {
		return rom.Errorf(rom.KindSchemaViolation, "", "%d trailing bytes", len(d.b)-d.off)
	}
	return nil
}

// validToken checks a short machine-readable string such as a capability or
// an export name.
func validToken(field, s string, n int) error {
	if s == "" {
		return rom.Errorf(rom.KindSchemaViolation, field, "value is empty")
	}
	if len(s) > n {
		return rom.Errorf(rom.KindSchemaViolation, field, "value is %d bytes, field holds %d", len(s), n)
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return rom.Errorf(rom.KindSchemaViolation, field, "invalid character %q in %q", c, s)
	}
	return nil
}

func validText(field, s string, n int) error {
	if len(s) > n {
		return rom.Errorf(rom.KindSchemaViolation, field, "value is %d bytes, field holds %d", len(s), n)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return rom.Errorf(rom.KindSchemaViolation, field, "non-printable byte %#x", s[i])
		}
	}
	return nil
}
