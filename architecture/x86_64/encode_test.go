package x86_64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildIns is a small helper for constructing Instruction values without
// repeating the Bits/Line boilerplate in every test case.
func buildIns(mnemonic string, ops ...Operand) Instruction {
	return Instruction{Mnemonic: mnemonic, Operands: ops, Bits: 64}
}

func assembleMnemonic(t *testing.T, ins Instruction) ([]byte, []Relocation) {
	t.Helper()
	api, err := Dispatch(ins)
	require.NoError(t, err)
	out, relocs, err := Assemble(api, ins)
	require.NoError(t, err)
	return out, relocs
}

// The six TestAssemble_* scenario tests below lock down the six bit-exact
// scenarios named in
// spec.md §8, each independently hand-derived from the dispatch/prefix
// tables rather than from an external reference assembler.
func TestAssemble_MovRaxImmediate(t *testing.T) {
	ins := buildIns("mov", RAX, Number{Value: 1, RealSize: SizeByte})
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00}, out)
	require.Empty(t, relocs)
}

func TestAssemble_AddEaxImm8(t *testing.T) {
	ins := buildIns("add", EAX, Number{Value: 0x7F, RealSize: SizeByte})
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0x83, 0xC0, 0x7F}, out)
	require.Empty(t, relocs)
}

func TestAssemble_XorR8dR8d(t *testing.T) {
	ins := buildIns("xor", R8D, R8D)
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0x45, 0x33, 0xC0}, out)
	require.Empty(t, relocs)
}

func TestAssemble_LeaRaxRipRelative(t *testing.T) {
	mem := Mem{
		RIPRelative: true,
		Symbol:      &SymbolRef{Name: "sym"},
		OperandSize: SizeQword,
	}
	ins := buildIns("lea", RAX, mem)
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0x48, 0x8D, 0x05, 0x00, 0x00, 0x00, 0x00}, out)

	require.Len(t, relocs, 1)
	r := relocs[0]
	require.Equal(t, "sym", r.Symbol)
	require.Equal(t, RelocPC32, r.Type)
	require.Equal(t, RelocLea, r.Category)
	require.Equal(t, 3, r.Offset)
	require.Equal(t, int64(-4), r.Addend)
}

func TestAssemble_VaddpsYmm(t *testing.T) {
	ins := buildIns("vaddps", ymmRegisters[1], ymmRegisters[2], ymmRegisters[3])
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0xC5, 0xEC, 0x58, 0xCB}, out)
	require.Empty(t, relocs)
}

func TestAssemble_Vfmadd231psXmm(t *testing.T) {
	ins := buildIns("vfmadd231ps", xmmRegisters[1], xmmRegisters[2], xmmRegisters[3])
	out, relocs := assembleMnemonic(t, ins)
	require.Equal(t, []byte{0xC4, 0xE2, 0x69, 0xB8, 0xCB}, out)
	require.Empty(t, relocs)
}

// ---------------------------------------------------------------------------
// Invariants (spec.md §8)
// ---------------------------------------------------------------------------

func TestAssemble_NeverExceeds15Bytes(t *testing.T) {
	cases := []Instruction{
		buildIns("mov", RAX, Number{Value: 1, RealSize: SizeByte}),
		buildIns("add", EAX, Number{Value: 0x7F, RealSize: SizeByte}),
		buildIns("xor", R8D, R8D),
		buildIns("lea", RAX, Mem{Symbol: &SymbolRef{Name: "sym"}, OperandSize: SizeQword}),
		buildIns("vaddps", ymmRegisters[1], ymmRegisters[2], ymmRegisters[3]),
		buildIns("vfmadd231ps", xmmRegisters[1], xmmRegisters[2], xmmRegisters[3]),
	}
	for _, ins := range cases {
		out, _ := assembleMnemonic(t, ins)
		require.LessOrEqual(t, len(out), 15, "mnemonic %s exceeded 15 bytes", ins.Mnemonic)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	ins := buildIns("xor", R8D, R8D)
	first, _ := assembleMnemonic(t, ins)
	second, _ := assembleMnemonic(t, ins)
	require.Equal(t, first, second)
}

// TestAssemble_VexOmitsRex verifies REX, VEX and EVEX prefixes never appear
// together: a VEX-dispatched instruction's encoded bytes must begin with a
// VEX escape (0xC4/0xC5), never a REX nibble (0x40-0x4F).
func TestAssemble_VexOmitsRex(t *testing.T) {
	ins := buildIns("vaddps", ymmRegisters[1], ymmRegisters[8], ymmRegisters[9])
	api, err := Dispatch(ins)
	require.NoError(t, err)
	require.True(t, api.HasFlag(FlagVEX))
	require.False(t, api.HasFlag(FlagREX))

	out, _, err := Assemble(api, ins)
	require.NoError(t, err)
	require.Contains(t, []byte{0xC4, 0xC5}, out[0])
}

func TestAssemble_UnknownMnemonic(t *testing.T) {
	ins := buildIns("bogus", RAX)
	_, err := Dispatch(ins)
	require.Error(t, err)
}
