package wasm

import (
	"context"
	"sort"

	"github.com/firefly-zero/firefly-cli/rom"
)

// DefaultMaxSize is the largest processed module the device accepts.
const DefaultMaxSize = rom.MaxMemberSize

// Policy controls what Postprocess accepts and what it keeps.
type Policy struct {
	// AllowedImports lists host functions as "module.field". The runtime
	// provides nothing else, so imported tables, memories, globals and tags
	// are always rejected.
	AllowedImports []string
	// KeepSections lists the section kinds that survive. Anything else,
	// custom sections in particular, is dropped.
	KeepSections []SectionID
	// RequiredExports must all be present in the processed module.
	RequiredExports []string
	// MaxSize bounds the processed module in bytes. Zero means DefaultMaxSize.
	MaxSize int
	// Validate additionally compiles the processed module.
	Validate bool
}

// DefaultPolicy is the platform policy for an app declaring capabilities.
func DefaultPolicy(capabilities []string) Policy {
	return Policy{
		AllowedImports: HostImports(capabilities),
		KeepSections:   append([]SectionID(nil), StandardSections...),
		MaxSize:        DefaultMaxSize,
	}
}

// Result is the processed module and what was learned about it.
type Result struct {
	Bytes       []byte
	Imports     []Import
	Exports     []Export
	EntryPoints []string
	// Dropped is the number of sections removed from the input.
	Dropped int
}

// Postprocess validates and rewrites a compiled module.
//
// Checks run in a fixed order and the first failure is returned: imports
// against the allow-list, section stripping, required exports, output size,
// then optional compilation. Running Postprocess on its own output yields
// identical bytes.
func Postprocess(ctx context.Context, raw []byte, policy Policy) (*Result, error) {
	mod, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	imports, err := mod.Imports()
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(policy.AllowedImports))
	for _, name := range policy.AllowedImports {
		allowed[name] = true
	}
	for _, imp := range imports {
		if imp.Kind != ExternFunc {
			return nil, rom.Errorf(rom.KindInvalidImport, imp.Name(), "only host functions can be imported, not a %s", imp.Kind)
		}
		if !allowed[imp.Name()] {
			return nil, rom.Errorf(rom.KindInvalidImport, imp.Name(), "host function is not in the allow-list")
		}
	}

	keep := make(map[SectionID]bool, len(policy.KeepSections))
	for _, id := range policy.KeepSections {
		if id != SectionCustom {
			keep[id] = true
		}
	}
	stripped, dropped := mod.Filter(func(s Section) bool { return keep[s.ID] })

	exports, err := stripped.Exports()
	if err != nil {
		return nil, err
	}
	exported := make(map[string]ExternKind, len(exports))
	for _, exp := range exports {
		exported[exp.Name] = exp.Kind
	}
	for _, name := range policy.RequiredExports {
		if _, ok := exported[name]; !ok {
			return nil, rom.Errorf(rom.KindMissingExport, name, "required export is missing")
		}
	}

	out := stripped.Encode()
	maxSize := policy.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(out) > maxSize {
		return nil, rom.Errorf(rom.KindModuleTooLarge, "", "module is %d bytes, limit is %d", len(out), maxSize)
	}

	if policy.Validate {
		if err := Validate(ctx, out, policy.AllowedImports); err != nil {
			return nil, err
		}
	}

	var entries []string
	for _, name := range EntryPoints {
		if kind, ok := exported[name]; ok && kind == ExternFunc {
			entries = append(entries, name)
		}
	}
	sort.Strings(entries)

	if !stripped.has(SectionImport) {
		imports = nil
	}
	return &Result{
		Bytes:       out,
		Imports:     imports,
		Exports:     exports,
		EntryPoints: entries,
		Dropped:     dropped,
	}, nil
}

func (m *Module) has(id SectionID) bool {
	_, ok := m.Section(id)
	return ok
}
