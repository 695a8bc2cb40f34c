package meta

import (
	"strconv"

	"github.com/firefly-zero/firefly-cli/rom"
)

const (
	BoardsMagic  = "FFBD"
	BoardsSchema = 1

	// MaxBoards bounds the number of scoreboards an app declares.
	MaxBoards = 20
	// MaxDecimals bounds the digits shown after the decimal point.
	MaxDecimals = 9
)

const (
	boardAsc  uint8 = 1 << 0
	boardTime uint8 = 1 << 1
)

// Board is a scoreboard.
type Board struct {
	Position uint16
	// Scores outside [Min, Max] are not recorded.
	Min int16
	Max int16
	// Asc orders scores ascending, for example lap times.
	Asc bool
	// Time formats scores as durations.
	Time     bool
	Decimals uint8
	Name     string
}

// Boards are stored in id order; the first board has id 1.
type Boards []Board

func (bs Boards) validate() error {
	if len(bs) > MaxBoards {
		return rom.Errorf(rom.KindSchemaViolation, "boards", "%d boards, at most %d allowed", len(bs), MaxBoards)
	}
	for i, b := range bs {
		field := "boards." + itoa(i+1)
		if b.Min > b.Max {
			return rom.Errorf(rom.KindSchemaViolation, field, "min %d is greater than max %d", b.Min, b.Max)
		}
		if b.Decimals > MaxDecimals {
			return rom.Errorf(rom.KindSchemaViolation, field, "at most %d decimals allowed", MaxDecimals)
		}
		if b.Name == "" {
			return rom.Errorf(rom.KindSchemaViolation, field, "name is empty")
		}
		if err := validText(field, b.Name, rom.MaxNameLen); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBoards serializes bs.
func EncodeBoards(bs Boards) ([]byte, error) {
	if err := bs.validate(); err != nil {
		return nil, err
	}
	e := &encoder{}
	e.raw([]byte(BoardsMagic))
	e.u8(BoardsSchema)
	e.u8(uint8(len(bs)))
	for _, b := range bs {
		var flags uint8
		if b.Asc {
			flags |= boardAsc
		}
		if b.Time {
			flags |= boardTime
		}
		e.u16(b.Position)
		e.i16(b.Min)
		e.i16(b.Max)
		e.u8(flags)
		e.u8(b.Decimals)
		_ = e.str("name", b.Name, rom.MaxNameLen)
	}
	return e.bytes(), nil
}

// DecodeBoards parses the output of EncodeBoards.
func DecodeBoards(raw []byte) (Boards, error) {
	d := &decoder{b: raw}
	d.magic(BoardsMagic)
	d.schema(BoardsSchema)
	n := int(d.u8("count"))
	bs := make(Boards, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		var b Board
		b.Position = d.u16("position")
		b.Min = d.i16("min")
		b.Max = d.i16("max")
		flags := d.u8("flags")
		if flags&^(boardAsc|boardTime) != 0 {
			d.fail("flags", "unknown board flags %#x", flags)
		}
		b.Asc = flags&boardAsc != 0
		b.Time = flags&boardTime != 0
		b.Decimals = d.u8("decimals")
		b.Name = d.str("name", rom.MaxNameLen)
		bs = append(bs, b)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	if err := bs.validate(); err != nil {
		return nil, err
	}
	return bs, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
