package wasm

import (
	"fmt"

	"github.com/firefly-zero/firefly-cli/rom"
)

// ExternKind is the kind of an imported or exported entity.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0
	ExternTable  ExternKind = 1
	ExternMemory ExternKind = 2
	ExternGlobal ExternKind = 3
	ExternTag    ExternKind = 4
)

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	case ExternTag:
		return "tag"
	default:
		return fmt.Sprintf("extern(%d)", byte(k))
	}
}

// Import is one entry of the import section.
type Import struct {
	Module string
	Field  string
	Kind   ExternKind
}

// Name is the dotted "module.field" form used by allow-lists.
func (i Import) Name() string { return i.Module + "." + i.Field }

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Imports decodes the import section. A module without one has no imports.
func (m *Module) Imports() ([]Import, error) {
	sec, ok := m.Section(SectionImport)
	if !ok {
		return nil, nil
	}
	r := &reader{b: sec.Payload}
	count, err := r.u32()
	if err != nil {
		return nil, badSection(sec.ID, err)
	}
	out := make([]Import, 0, min(int(count), len(sec.Payload)))
	for i := uint32(0); i < count; i++ {
		var imp Import
		if imp.Module, err = r.name(); err != nil {
			return nil, badSection(sec.ID, err)
		}
		if imp.Field, err = r.name(); err != nil {
			return nil, badSection(sec.ID, err)
		}
		kind, err := r.byte()
		if err != nil {
			return nil, badSection(sec.ID, err)
		}
		imp.Kind = ExternKind(kind)
		if err := skipImportDesc(r, imp.Kind); err != nil {
			return nil, badSection(sec.ID, err)
		}
		out = append(out, imp)
	}
	if !r.done() {
		return nil, badSection(sec.ID, fmt.Errorf("%d trailing bytes", len(r.b)-r.off))
	}
	return out, nil
}

// Exports decodes the export section. A module without one has no exports.
func (m *Module) Exports() ([]Export, error) {
	sec, ok := m.Section(SectionExport)
	if !ok {
		return nil, nil
	}
	r := &reader{b: sec.Payload}
	count, err := r.u32()
	if err != nil {
		return nil, badSection(sec.ID, err)
	}
	out := make([]Export, 0, min(int(count), len(sec.Payload)))
	for i := uint32(0); i < count; i++ {
		var exp Export
		if exp.Name, err = r.name(); err != nil {
			return nil, badSection(sec.ID, err)
		}
		kind, err := r.byte()
		if err != nil {
			return nil, badSection(sec.ID, err)
		}
		exp.Kind = ExternKind(kind)
		if exp.Index, err = r.u32(); err != nil {
			return nil, badSection(sec.ID, err)
		}
		out = append(out, exp)
	}
	if !r.done() {
		return nil, badSection(sec.ID, fmt.Errorf("%d trailing bytes", len(r.b)-r.off))
	}
	return out, nil
}

func skipImportDesc(r *reader, kind ExternKind) error {
	switch kind {
	case ExternFunc:
		_, err := r.u32()
		return err
	case ExternTable:
		if err := skipRefType(r); err != nil {
			return err
		}
		return skipLimits(r)
	case ExternMemory:
		return skipLimits(r)
	case ExternGlobal:
		if err := skipValType(r); err != nil {
			return err
		}
		_, err := r.byte()
		return err
	case ExternTag:
		if _, err := r.byte(); err != nil {
			return err
		}
		_, err := r.u32()
		return err
	default:
		return fmt.Errorf("unknown import kind %d", byte(kind))
	}
}

func skipLimits(r *reader) error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	if flags > 0x07 {
		return fmt.Errorf("invalid limits flags 0x%02x", flags)
	}
	if _, err := r.u64(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if _, err := r.u64(); err != nil {
			return err
		}
	}
	return nil
}

func skipValType(r *reader) error {
	c, err := r.byte()
	if err != nil {
		return err
	}
	switch c {
	case 0x63, 0x64: // (ref null ht), (ref ht)
		return r.sleb33()
	default:
		return nil
	}
}

func skipRefType(r *reader) error {
	return skipValType(r)
}

func badSection(id SectionID, err error) error {
	return rom.Wrap(rom.KindInvalidModule, "", fmt.Sprintf("malformed %s section", id), err)
}
