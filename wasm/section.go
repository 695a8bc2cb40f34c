package wasm

import (
	"bytes"
	"fmt"

	"github.com/firefly-zero/firefly-cli/rom"
)

// SectionID is the kind of a module section.
type SectionID byte

const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionTag       SectionID = 13
)

var sectionNames = map[SectionID]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "datacount",
	SectionTag:       "tag",
}

func (id SectionID) String() string {
	if s, ok := sectionNames[id]; ok {
		return s
	}
	return fmt.Sprintf("section(%d)", byte(id))
}

// StandardSections lists every non-custom section kind.
var StandardSections = []SectionID{
	SectionType, SectionImport, SectionFunction, SectionTable, SectionMemory,
	SectionGlobal, SectionExport, SectionStart, SectionElement, SectionCode,
	SectionData, SectionDataCount, SectionTag,
}

var (
	magic    = []byte{0x00, 'a', 's', 'm'}
	version1 = []byte{0x01, 0x00, 0x00, 0x00}
)

// Section is one raw section of a module.
//
// Payload is the section content exactly as it appears in the binary,
// including the name prefix of custom sections.
type Section struct {
	ID      SectionID
	Name    string // custom sections only
	Payload []byte
}

// Module is a core WebAssembly module as an ordered list of sections.
type Module struct {
	Sections []Section
}

// Parse splits a binary module into sections.
//
// Only core modules (binary version 1) are accepted. Section contents are not
// interpreted beyond custom section names.
func Parse(raw []byte) (*Module, error) {
	if len(raw) < 8 || !bytes.Equal(raw[:4], magic) {
		return nil, rom.Errorf(rom.KindInvalidModule, "", "missing wasm magic header")
	}
	if !bytes.Equal(raw[4:8], version1) {
		return nil, rom.Errorf(rom.KindInvalidModule, "", "unsupported binary version % x (component binaries are not supported)", raw[4:8])
	}

	r := &reader{b: raw, off: 8}
	seen := map[SectionID]bool{}
	var sections []Section
	for !r.done() {
		start := r.off
		id, err := r.byte()
		if err != nil {
			return nil, malformed(start, err)
		}
		size, err := r.u32()
		if err != nil {
			return nil, malformed(start, err)
		}
		payload, err := r.bytes(size)
		if err != nil {
			return nil, malformed(start, err)
		}
		sec := Section{ID: SectionID(id), Payload: payload}
		switch {
		case sec.ID == SectionCustom:
			pr := &reader{b: payload}
			name, err := pr.name()
			if err != nil {
				return nil, malformed(start, fmt.Errorf("custom section name: %w", err))
			}
			sec.Name = name
		case sec.ID > SectionTag:
			return nil, rom.Errorf(rom.KindInvalidModule, "", "unknown section id %d at offset %d", id, start)
		default:
			if seen[sec.ID] {
				return nil, rom.Errorf(rom.KindInvalidModule, "", "duplicate %s section at offset %d", sec.ID, start)
			}
			seen[sec.ID] = true
		}
		sections = append(sections, sec)
	}
	return &Module{Sections: sections}, nil
}

// Encode serializes the module with minimal section size prefixes.
func (m *Module) Encode() []byte {
	n := len(magic) + len(version1)
	for _, s := range m.Sections {
		n += 1 + 5 + len(s.Payload)
	}
	out := make([]byte, 0, n)
	out = append(out, magic...)
	out = append(out, version1...)
	for _, s := range m.Sections {
		out = append(out, byte(s.ID))
		out = appendUleb(out, uint64(len(s.Payload)))
		out = append(out, s.Payload...)
	}
	return out
}

// Section returns the first section with the given id.
func (m *Module) Section(id SectionID) (Section, bool) {
	for _, s := range m.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Filter returns a module holding only sections whose kind keep accepts,
// in their original relative order, and the number of dropped sections.
func (m *Module) Filter(keep func(Section) bool) (*Module, int) {
	out := &Module{Sections: make([]Section, 0, len(m.Sections))}
	dropped := 0
	for _, s := range m.Sections {
		if keep(s) {
			out.Sections = append(out.Sections, s)
			continue
		}
		dropped++
	}
	return out, dropped
}

func malformed(offset int, err error) error {
	return rom.Wrap(rom.KindInvalidModule, "", fmt.Sprintf("malformed section at offset %d", offset), err)
}
