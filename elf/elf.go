// Package elf writes relocatable ELF32 and ELF64 object files from a
// compiled x86_64.Program. It hand-rolls the container format on
// encoding/binary rather than pulling in a third-party ELF writer: none
// exists anywhere in the retrieved example pack (see DESIGN.md), and the
// byte layouts below are small and fixed enough that encoding/binary is
// the natural tool, the same way the pack's own xyproto-flapc hand-rolls
// its ELF writer.
package elf

import "github.com/keurnel/x64enc/architecture/x86_64"

// Section type constants (sh_type).
const (
	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtNobits   = 8
	shtRel      = 9
)

// Section flag bits (sh_flags).
const (
	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4
)

// Symbol binding (high nibble of st_info).
const (
	stbLocal  = 0
	stbGlobal = 1
	stbWeak   = 2
)

// Symbol type (low nibble of st_info).
const (
	sttNotype  = 0
	sttObject  = 1
	sttFunc    = 2
	sttSection = 3
	sttFile    = 4
)

// Machine / class / ABI constants.
const (
	em386    = 3
	emX8664  = 62
	elfClass32 = 1
	elfClass64 = 2
	elfData2LSB = 1
	evCurrent   = 1
	elfOSABISysv = 0
	etRel        = 1
)

// x86-64 relocation types (System V ABI).
const (
	rX8664None = 0
	rX8664_64  = 1
	rX8664PC32 = 2
	rX8664_32  = 10
)

// i386 relocation types.
const (
	r386None = 0
	r386_32  = 1
	r386PC32 = 2
)

func stInfo(bind, typ byte) byte { return bind<<4 | (typ & 0xf) }

func visibilityBind(v x86_64.Visibility) byte {
	switch v {
	case x86_64.VisibilityGlobal:
		return stbGlobal
	case x86_64.VisibilityWeak:
		return stbWeak
	default:
		return stbLocal
	}
}

func symbolType(t x86_64.SymbolType) byte {
	switch t {
	case x86_64.SymTypeFunc:
		return sttFunc
	case x86_64.SymTypeObject:
		return sttObject
	case x86_64.SymTypeSection:
		return sttSection
	case x86_64.SymTypeFile:
		return sttFile
	default:
		return sttNotype
	}
}

// stringTable accumulates a NUL-separated ELF string table, starting with
// the mandatory empty string at offset 0, and deduplicates repeat names.
type stringTable struct {
	buf     []byte
	offsets map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{buf: []byte{0}, offsets: map[string]uint32{"": 0}}
}

func (s *stringTable) add(name string) uint32 {
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint32(len(s.buf))
	s.buf = append(s.buf, []byte(name)...)
	s.buf = append(s.buf, 0)
	s.offsets[name] = off
	return off
}

// planSymbol is the writer's internal, format-agnostic view of one symtab
// entry before it is packed into Elf32_Sym / Elf64_Sym.
type planSymbol struct {
	name    string
	shndx   uint16
	value   uint64
	size    uint64
	bind    byte
	typ     byte
}

// symbolPlan partitions the program's symbols into ELF symtab order: null,
// file, section symbols, local user symbols, then global/weak user symbols
// — local symbols must precede non-local ones (sh_info marks the boundary).
type symbolPlan struct {
	symbols  []planSymbol
	index    map[string]int // user symbol name -> symtab index
	localEnd int             // index of the first non-local symbol
}

func buildSymbolPlan(p *x86_64.Program, fileName string) *symbolPlan {
	plan := &symbolPlan{index: make(map[string]int)}

	plan.symbols = append(plan.symbols, planSymbol{}) // STN_UNDEF
	plan.symbols = append(plan.symbols, planSymbol{
		name: fileName,
		typ:  sttFile,
		bind: stbLocal,
	})

	for i := range p.Sections {
		plan.symbols = append(plan.symbols, planSymbol{
			shndx: uint16(i + 1),
			typ:   sttSection,
			bind:  stbLocal,
		})
	}

	var localUser, globalUser []planSymbol
	for _, sym := range p.Symbols {
		ps := planSymbol{
			name:  sym.Name,
			shndx: uint16(sym.SectionIdx + 1),
			value: uint64(sym.Offset),
			size:  uint64(sym.Size),
			bind:  visibilityBind(sym.Visibility),
			typ:   symbolType(sym.Type),
		}
		if ps.bind == stbLocal {
			localUser = append(localUser, ps)
		} else {
			globalUser = append(globalUser, ps)
		}
	}

	plan.symbols = append(plan.symbols, localUser...)
	plan.localEnd = len(plan.symbols)
	plan.symbols = append(plan.symbols, globalUser...)

	for i, ps := range plan.symbols {
		if ps.name != "" {
			plan.index[ps.name] = i
		}
	}

	// Relocations may reference symbols with no local definition (externs);
	// these become undefined global symbols appended at the end.
	for _, r := range p.Relocations {
		if _, ok := plan.index[r.Symbol]; ok {
			continue
		}
		plan.index[r.Symbol] = len(plan.symbols)
		plan.symbols = append(plan.symbols, planSymbol{name: r.Symbol, bind: stbGlobal})
	}

	return plan
}

func relocSectionName(rela bool, target string) string {
	if rela {
		return ".rela" + target
	}
	return ".rel" + target
}
