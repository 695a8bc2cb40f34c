package meta

import "github.com/firefly-zero/firefly-cli/rom"

// ShortMagic opens a ShortMeta record.
const ShortMagic = "FFSM"

// ShortMeta points the device at one installed app. The VFS writes it to
// sys/new-app after every install and to sys/launcher for launcher apps.
type ShortMeta struct {
	ID rom.AppID
}

// EncodeShort serializes s.
func EncodeShort(s ShortMeta) ([]byte, error) {
	if err := s.ID.Validate(); err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, s.ID.String(), "invalid app id", err)
	}
	e := &encoder{}
	e.raw([]byte(ShortMagic))
	_ = e.str("author_id", s.ID.Author, rom.MaxIDLen)
	_ = e.str("app_id", s.ID.App, rom.MaxIDLen)
	return e.bytes(), nil
}

// DecodeShort parses the output of EncodeShort.
func DecodeShort(raw []byte) (ShortMeta, error) {
	d := &decoder{b: raw}
	d.magic(ShortMagic)
	var s ShortMeta
	s.ID.Author = d.str("author_id", rom.MaxIDLen)
	s.ID.App = d.str("app_id", rom.MaxIDLen)
	if err := d.finish(); err != nil {
		return ShortMeta{}, err
	}
	if err := s.ID.Validate(); err != nil {
		return ShortMeta{}, rom.Wrap(rom.KindSchemaViolation, s.ID.String(), "invalid app id", err)
	}
	return s, nil
}
