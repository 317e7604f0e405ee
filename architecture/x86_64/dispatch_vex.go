package x86_64

// vexArithOp describes one VEX-encoded SSE/AVX arithmetic/logic mnemonic:
// its opcode byte, opcode map, and mandatory prefix. All of them share the
// same 3-operand (dst, src1=vvvv, src2=rm) shape.
type vexArithOp struct {
	opcode byte
	mmmmm  byte
	pp     byte
}

var vexArithTable = map[string]vexArithOp{
	"vaddps": {0x58, 1, 0},
	"vsubps": {0x5C, 1, 0},
	"vmulps": {0x59, 1, 0},
	"vdivps": {0x5E, 1, 0},
	"vaddpd": {0x58, 1, 1},
	"vsubpd": {0x5C, 1, 1},
	"vmulpd": {0x59, 1, 1},
	"vdivpd": {0x5E, 1, 1},
	"vpaddb": {0xFC, 1, 1},
	"vpor":   {0xEB, 1, 1},
	"vpxor":  {0xEF, 1, 1},
	"vpand":  {0xDB, 1, 1},
}

// dispatchVexArith builds the common 3-operand VEX arithmetic/logic
// descriptor. The ZMM case (EVEX) is routed for any mnemonic whose
// destination is a ZMM register, exercising the EVEX path end to end as
// called for in SPEC_FULL.md's supplemented-features section.
func dispatchVexArith(ins Instruction) (GenAPI, error) {
	entry, ok := vexArithTable[ins.Mnemonic]
	if !ok {
		return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "no VEX arithmetic table entry"}
	}

	dst, _ := ins.Operand(0).(Register)

	if dst.Type == RegisterZMM {
		api := Op(entry.opcode).WithModRM().WithEVEX(false, entry.mmmmm&0x3, entry.pp).
			WithOpOrd(OrdRegVvvvRm).WithVexLength(VexLen512)
		return api, nil
	}

	length := VexLen128
	if dst.Type == RegisterYMM {
		length = VexLen256
	}

	api := Op(entry.opcode).WithModRM().WithVEX(false, entry.mmmmm, entry.pp).
		WithOpOrd(OrdRegVvvvRm).WithVexLength(length)
	return api, nil
}

var fmaTable = map[string]byte{
	"vfmadd231ps": 0xB8,
	"vfmadd213ps": 0xA8,
	"vfmadd132ps": 0x98,
}

// dispatchFma covers the three-operand-order variants of a fused
// multiply-add: the 0F38-map opcode selects which source operand comes
// first, but the wire shape (dst=reg, src1=vvvv, src2=rm) is identical.
func dispatchFma(ins Instruction) (GenAPI, error) {
	opcode, ok := fmaTable[ins.Mnemonic]
	if !ok {
		return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "no FMA table entry"}
	}
	dst, _ := ins.Operand(0).(Register)
	length := VexLen128
	if dst.Type == RegisterYMM {
		length = VexLen256
	}
	return Op(opcode).WithModRM().WithVEX(false, 2, 1).WithOpOrd(OrdRegVvvvRm).WithVexLength(length), nil
}

var aesTable = map[string]byte{
	"aesenc":     0xDC,
	"aesenclast": 0xDD,
	"aesdec":     0xDE,
	"aesdeclast": 0xDF,
}

// dispatchAes covers the legacy (non-VEX) two-operand AES-NI round
// instructions: 66 0F38 /r.
func dispatchAes(ins Instruction) (GenAPI, error) {
	opcode, ok := aesTable[ins.Mnemonic]
	if !ok {
		return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "no AES table entry"}
	}
	return Op(0x0F, 0x38, opcode).WithModRM().WithPrefix(0x66).WithOpOrd(OrdRegRm), nil
}
