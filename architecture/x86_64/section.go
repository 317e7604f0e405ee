package x86_64

import (
	"fmt"
	"sort"

	"github.com/keurnel/x64enc/internal/debugcontext"
)

// sectionOrder fixes the deterministic layout order sections are written
// in, regardless of which order the front end discovered them in source.
var sectionOrder = map[string]int{
	".text": 0,
	".data": 1,
	".rodata": 2,
	".bss":  3,
}

// Label is one named, alignable run of instructions within a section.
type Label struct {
	Name         string
	Section      string
	Align        int
	Instructions []Instruction
	IsEntry      bool
}

// Section accumulates the compiled bytes, relocations, and symbols for one
// named section across every label assigned to it. `.bss` never receives
// emitted bytes — Size is a pure reservation.
type Section struct {
	Name   string
	Data   []byte
	Size   int // for .bss, the reserved byte count; Data stays empty
	IsBSS  bool
}

// Program is the two-pass compiler's output: every section in layout
// order, plus the aggregated relocations and symbols (already
// section-index-attached).
type Program struct {
	Sections    []*Section
	Relocations []Relocation
	Symbols     []Symbol
}

// Compile walks every label's instructions, in section order, dispatching
// and encoding each one (§4.6 -> §4.5), and produces the final section
// buffers plus aggregated relocation and symbol tables (§4.7, §4.8).
//
// Ordering guarantees from §5: within a section, instructions are emitted
// in the order their labels were passed in; a label's own instruction
// order is preserved exactly.
func Compile(labels []Label, dbg *debugcontext.DebugContext) (*Program, error) {
	sectionsByName := map[string]*Section{}
	var names []string
	for _, label := range labels {
		if _, ok := sectionsByName[label.Section]; ok {
			continue
		}
		sectionsByName[label.Section] = &Section{Name: label.Section, IsBSS: label.Section == ".bss"}
		names = append(names, label.Section)
	}
	sort.SliceStable(names, func(i, j int) bool {
		return sectionRank(names[i]) < sectionRank(names[j])
	})

	sectionIdx := make(map[string]int, len(names))
	prog := &Program{}
	for i, name := range names {
		sectionIdx[name] = i
		prog.Sections = append(prog.Sections, sectionsByName[name])
	}

	for _, label := range labels {
		sec := sectionsByName[label.Section]
		idx := sectionIdx[label.Section]
		startOffset := sec.Size

		if label.Align > 1 && !label.IsEntry {
			pad := (label.Align - (sec.Size % label.Align)) % label.Align
			if pad > 0 {
				if !sec.IsBSS {
					sec.Data = append(sec.Data, make([]byte, pad)...)
				}
				sec.Size += pad
				startOffset = sec.Size
			}
		}

		labelBytes := 0
		for _, ins := range label.Instructions {
			api, err := Dispatch(ins)
			if err != nil {
				if dbg != nil {
					dbg.Error(dbg.Loc(ins.Line, 0), err.Error())
				}
				return nil, err
			}

			bytes, relocs, err := Assemble(api, ins)
			if err != nil {
				if dbg != nil {
					dbg.Error(dbg.Loc(ins.Line, 0), err.Error())
				}
				return nil, err
			}

			localOffset := sec.Size
			for i := range relocs {
				relocs[i].Offset += localOffset
				relocs[i].SectionIdx = idx
				prog.Relocations = append(prog.Relocations, relocs[i])
			}

			if !sec.IsBSS {
				sec.Data = append(sec.Data, bytes...)
			}
			sec.Size += len(bytes)
			labelBytes += len(bytes)
		}

		prog.Symbols = append(prog.Symbols, Symbol{
			Name:       label.Name,
			SectionIdx: idx,
			Offset:     startOffset,
			Size:       labelBytes,
			Visibility: VisibilityLocal,
			Type:       SymTypeFunc,
		})
	}

	return prog, nil
}

func sectionRank(name string) int {
	if r, ok := sectionOrder[name]; ok {
		return r
	}
	return len(sectionOrder) // unrecognised sections sort last, stably
}

// FindSymbol looks up a compiled symbol by name.
func (p *Program) FindSymbol(name string) (Symbol, bool) {
	for _, s := range p.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// ResolveIntraSection resolves every intra-section relocation in place
// against the compiled symbol table — what raw-binary output needs, since a
// flat binary carries no relocation section of its own. An unresolved
// symbol at this point is fatal (§7 error class 4).
func (p *Program) ResolveIntraSection() error {
	for _, reloc := range p.Relocations {
		sym, ok := p.FindSymbol(reloc.Symbol)
		if !ok {
			return fmt.Errorf("x86_64: unresolved symbol %q", reloc.Symbol)
		}
		if sym.SectionIdx != reloc.SectionIdx {
			return fmt.Errorf("x86_64: cross-section reference to %q not supported in raw output", reloc.Symbol)
		}

		sec := p.Sections[reloc.SectionIdx]
		var value int64
		switch reloc.Type {
		case RelocPC32:
			value = int64(sym.Offset) - int64(reloc.Offset) + reloc.Addend
		default:
			value = int64(sym.Offset) + reloc.Addend
		}
		writeLE32(sec.Data[reloc.Offset:], uint32(value))
	}
	return nil
}

func writeLE32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}
