// Package testutil builds small, valid inputs for pipeline tests: WebAssembly
// modules, PNG images and WAV files.
package testutil

import "strings"

// ModuleSpec describes a module for BuildModule.
//
// Every import is a function of type () -> () named "module.field". Every
// export is a locally defined function with an empty body, except "memory"
// which exports a one-page memory.
type ModuleSpec struct {
	Imports []string
	// ImportMemory, when set, imports a memory as "module.field" after the
	// function imports.
	ImportMemory string
	Exports []string
	// Custom sections are appended after the code section, in order.
	Custom []CustomSection
}

// CustomSection is a named custom section.
type CustomSection struct {
	Name    string
	Payload []byte
}

// BuildModule encodes a valid core module.
func BuildModule(spec ModuleSpec) []byte {
	out := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

	// type section: one func type () -> ()
	out = appendSection(out, 1, []byte{0x01, 0x60, 0x00, 0x00})

	if n := len(spec.Imports); n > 0 || spec.ImportMemory != "" {
		if spec.ImportMemory != "" {
			n++
		}
		p := uleb(nil, uint32(n))
		for _, imp := range spec.Imports {
			module, field, _ := strings.Cut(imp, ".")
			p = appendName(p, module)
			p = appendName(p, field)
			p = append(p, 0x00, 0x00) // func, type 0
		}
		if spec.ImportMemory != "" {
			module, field, _ := strings.Cut(spec.ImportMemory, ".")
			p = appendName(p, module)
			p = appendName(p, field)
			p = append(p, 0x02, 0x00, 0x01) // memory, min 1 page
		}
		out = appendSection(out, 2, p)
	}

	var funcs []string
	hasMemory := false
	for _, name := range spec.Exports {
		if name == "memory" {
			hasMemory = true
			continue
		}
		funcs = append(funcs, name)
	}

	// function section
	p := uleb(nil, uint32(len(funcs)))
	for range funcs {
		p = append(p, 0x00)
	}
	out = appendSection(out, 3, p)

	if hasMemory {
		out = appendSection(out, 5, []byte{0x01, 0x00, 0x01})
	}

	// export section
	p = uleb(nil, uint32(len(spec.Exports)))
	fnIndex := uint32(len(spec.Imports))
	for _, name := range spec.Exports {
		p = appendName(p, name)
		if name == "memory" {
			p = append(p, 0x02, 0x00)
			continue
		}
		p = append(p, 0x00)
		p = uleb(p, fnIndex)
		fnIndex++
	}
	out = appendSection(out, 7, p)

	// code section: empty bodies
	p = uleb(nil, uint32(len(funcs)))
	for range funcs {
		p = append(p, 0x02, 0x00, 0x0b)
	}
	out = appendSection(out, 10, p)

	for _, c := range spec.Custom {
		payload := appendName(nil, c.Name)
		payload = append(payload, c.Payload...)
		out = appendSection(out, 0, payload)
	}
	return out
}

func appendSection(dst []byte, id byte, payload []byte) []byte {
	dst = append(dst, id)
	dst = uleb(dst, uint32(len(payload)))
	return append(dst, payload...)
}

func appendName(dst []byte, s string) []byte {
	dst = uleb(dst, uint32(len(s)))
	return append(dst, s...)
}

func uleb(dst []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, c|0x80)
			continue
		}
		return append(dst, c)
	}
}
