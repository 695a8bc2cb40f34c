package meta

import "github.com/firefly-zero/firefly-cli/rom"

const (
	BadgesMagic  = "FFBG"
	BadgesSchema = 1

	// MaxBadges bounds the number of badges an app declares.
	MaxBadges = 0xFF
	// MaxDescrLen bounds a badge description.
	MaxDescrLen = 128
)

// Badge is an achievement the app can award.
type Badge struct {
	// Position orders badges on screen, ascending.
	Position uint16
	// XP is the experience the player earns with the badge.
	XP uint8
	// Hidden badges are not shown until earned.
	Hidden bool
	// Steps is how many progress steps earn the badge. Never zero.
	Steps uint16
	Name  string
	Descr string
}

// Badges are stored in id order; the first badge has id 1.
type Badges []Badge

func (bs Badges) validate() error {
	if len(bs) > MaxBadges {
		return rom.Errorf(rom.KindSchemaViolation, "badges", "%d badges, at most %d allowed", len(bs), MaxBadges)
	}
	for i, b := range bs {
		field := badgeField(i)
		if b.Steps == 0 {
			return rom.Errorf(rom.KindSchemaViolation, field, "steps must not be zero")
		}
		if b.Name == "" {
			return rom.Errorf(rom.KindSchemaViolation, field, "name is empty")
		}
		if err := validText(field, b.Name, rom.MaxNameLen); err != nil {
			return err
		}
		if err := validText(field, b.Descr, MaxDescrLen); err != nil {
			return err
		}
	}
	return nil
}

func badgeField(i int) string {
	return "badges." + itoa(i+1)
}

// EncodeBadges serializes bs.
func EncodeBadges(bs Badges) ([]byte, error) {
	if err := bs.validate(); err != nil {
		return nil, err
	}
	e := &encoder{}
	e.raw([]byte(BadgesMagic))
	e.u8(BadgesSchema)
	e.u8(uint8(len(bs)))
	for _, b := range bs {
		e.u16(b.Position)
		e.u8(b.XP)
		if b.Hidden {
			e.u8(1)
		} else {
			e.u8(0)
		}
		e.u16(b.Steps)
		_ = e.str("name", b.Name, rom.MaxNameLen)
		_ = e.str("descr", b.Descr, MaxDescrLen)
	}
	return e.bytes(), nil
}

// DecodeBadges parses the output of EncodeBadges.
func DecodeBadges(raw []byte) (Badges, error) {
	d := &decoder{b: raw}
	d.magic(BadgesMagic)
	d.schema(BadgesSchema)
	n := int(d.u8("count"))
	bs := make(Badges, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		var b Badge
		b.Position = d.u16("position")
		b.XP = d.u8("xp")
		switch d.u8("hidden") {
		case 0:
		case 1:
			b.Hidden = true
		default:
			d.fail(badgeField(i), "hidden must be 0 or 1")
		}
		b.Steps = d.u16("steps")
		b.Name = d.str("name", rom.MaxNameLen)
		b.Descr = d.str("descr", MaxDescrLen)
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
