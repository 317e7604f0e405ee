package elf

import (
	"testing"

	"github.com/keurnel/x64enc/architecture/x86_64"
	"github.com/stretchr/testify/require"
)

func buildProgram(t *testing.T) *x86_64.Program {
	t.Helper()
	labels := []x86_64.Label{
		{
			Name:    "_start",
			Section: ".text",
			IsEntry: true,
			Instructions: []x86_64.Instruction{
				{Mnemonic: "xor", Bits: 64, Operands: []x86_64.Operand{
					x86_64.R8D, x86_64.R8D,
				}},
			},
		},
	}
	prog, err := x86_64.Compile(labels, nil)
	require.NoError(t, err)
	return prog
}

func elfMagic(b []byte) []byte { return b[:4] }

func TestWrite64_ProducesValidHeaderMagicAndClass(t *testing.T) {
	prog := buildProgram(t)
	out, err := Write64(prog, "input.kasm")
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, elfMagic(out))
	require.Equal(t, byte(elfClass64), out[4])
	require.Equal(t, byte(elfData2LSB), out[5])
}

func TestWrite64_SectionHeaderCountIncludesNullAndShstrtab(t *testing.T) {
	prog := buildProgram(t)
	out, err := Write64(prog, "input.kasm")
	require.NoError(t, err)

	shnum := int(out[60]) | int(out[61])<<8
	// NULL, .text, .symtab, .strtab, .shstrtab — no relocations in this
	// program since the single instruction needs none.
	require.Equal(t, 5, shnum)
}

func TestWrite32_ProducesValidHeaderMagicAndClass(t *testing.T) {
	prog := buildProgram(t)
	out, err := Write32(prog, "input.kasm")
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, elfMagic(out))
	require.Equal(t, byte(elfClass32), out[4])
}

func TestWrite64_WithRelocationEmitsRelaSection(t *testing.T) {
	labels := []x86_64.Label{
		{
			Name:    "_start",
			Section: ".text",
			IsEntry: true,
			Instructions: []x86_64.Instruction{
				{Mnemonic: "lea", Bits: 64, Operands: []x86_64.Operand{
					x86_64.RAX,
					x86_64.Mem{Symbol: &x86_64.SymbolRef{Name: "msg"}, OperandSize: x86_64.SizeQword},
				}},
			},
		},
	}
	prog, err := x86_64.Compile(labels, nil)
	require.NoError(t, err)

	out, err := Write64(prog, "input.kasm")
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, elfMagic(out))

	shnum := int(out[60]) | int(out[61])<<8
	// NULL, .text, .symtab, .rela.text, .strtab, .shstrtab
	require.Equal(t, 6, shnum)
}

func TestStringTable_DeduplicatesRepeatedNames(t *testing.T) {
	st := newStringTable()
	a := st.add("foo")
	b := st.add("bar")
	c := st.add("foo")
	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
}

func TestBuildSymbolPlan_LocalSymbolsPrecedeGlobal(t *testing.T) {
	prog := &x86_64.Program{
		Sections: []*x86_64.Section{{Name: ".text"}},
		Symbols: []x86_64.Symbol{
			{Name: "pub", SectionIdx: 0, Visibility: x86_64.VisibilityGlobal},
			{Name: "priv", SectionIdx: 0, Visibility: x86_64.VisibilityLocal},
		},
	}
	plan := buildSymbolPlan(prog, "f.kasm")

	privIdx := plan.index["priv"]
	pubIdx := plan.index["pub"]
	require.Less(t, privIdx, plan.localEnd)
	require.GreaterOrEqual(t, pubIdx, plan.localEnd)
}

func TestBuildSymbolPlan_UnresolvedRelocationSymbolBecomesUndefinedGlobal(t *testing.T) {
	prog := &x86_64.Program{
		Sections: []*x86_64.Section{{Name: ".text"}},
		Relocations: []x86_64.Relocation{
			{Symbol: "extern_fn", SectionIdx: 0, Type: x86_64.RelocPC32},
		},
	}
	plan := buildSymbolPlan(prog, "f.kasm")
	idx, ok := plan.index["extern_fn"]
	require.True(t, ok)
	require.Equal(t, byte(stbGlobal), plan.symbols[idx].bind)
}
