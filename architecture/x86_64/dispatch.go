package x86_64

import "fmt"

// Dispatch maps a mnemonic and its operand shapes to a GenAPI descriptor.
// Most mnemonics return a descriptor built once per call from a static
// table; a handful (MOV, PUSH/POP, the ADD-family, shifts, jumps) are
// shape-dependent and build the descriptor imperatively from the operand
// kinds, following §4.6. Dispatch never retains state between calls.
func Dispatch(ins Instruction) (GenAPI, error) {
	switch ins.Mnemonic {
	case "mov":
		return dispatchMov(ins)
	case "push":
		return dispatchPush(ins)
	case "pop":
		return dispatchPop(ins)
	case "lea":
		return dispatchLea(ins)
	case "add", "or", "adc", "sbb", "and", "sub", "xor", "cmp":
		return dispatchArithFamily(ins)
	case "test":
		return dispatchTest(ins)
	case "imul":
		return dispatchImul(ins)
	case "xchg":
		return dispatchXchg(ins)
	case "shl", "sal", "shr", "sar", "rol", "ror", "rcl", "rcr":
		return dispatchShiftFamily(ins)
	case "jmp":
		return dispatchJmp(ins)
	case "call":
		return dispatchCall(ins)
	case "ret":
		return Op(0xC3), nil
	case "nop":
		return Op(0x90), nil

	case "je", "jz":
		return jccDescriptor(0x4), nil
	case "jne", "jnz":
		return jccDescriptor(0x5), nil
	case "jl", "jnge":
		return jccDescriptor(0xC), nil
	case "jge", "jnl":
		return jccDescriptor(0xD), nil
	case "jle", "jng":
		return jccDescriptor(0xE), nil
	case "jg", "jnle":
		return jccDescriptor(0xF), nil
	case "jb", "jnae", "jc":
		return jccDescriptor(0x2), nil
	case "jae", "jnb", "jnc":
		return jccDescriptor(0x3), nil

	case "cmove", "cmovz":
		return cmovDescriptor(0x4), nil
	case "cmovne", "cmovnz":
		return cmovDescriptor(0x5), nil
	case "cmovl", "cmovnge":
		return cmovDescriptor(0xC), nil
	case "cmovg", "cmovnle":
		return cmovDescriptor(0xF), nil

	case "sete", "setz":
		return setccDescriptor(0x4), nil
	case "setne", "setnz":
		return setccDescriptor(0x5), nil
	case "setl", "setnge":
		return setccDescriptor(0xC), nil
	case "setg", "setnle":
		return setccDescriptor(0xF), nil

	case "vaddps", "vsubps", "vmulps", "vdivps", "vaddpd", "vsubpd", "vmulpd", "vdivpd",
		"vpaddb", "vpor", "vpxor", "vpand":
		return dispatchVexArith(ins)
	case "vfmadd231ps", "vfmadd213ps", "vfmadd132ps":
		return dispatchFma(ins)
	case "aesenc", "aesdec", "aesenclast", "aesdeclast":
		return dispatchAes(ins)

	default:
		return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: fmt.Sprintf("no dispatch entry for mnemonic %q", ins.Mnemonic)}
	}
}

// dispatchMov covers the classic MOV shapes: reg<-reg, reg<-mem, mem<-reg,
// reg/mem<-imm. MOV's immediate is never sign-extended from a narrower
// width (§9), unlike the ADD-family.
func dispatchMov(ins Instruction) (GenAPI, error) {
	dst := ins.Operand(0)
	src := ins.Operand(1)

	switch src.(type) {
	case Number:
		size := operandSize(dst)
		opcode := byte(0xC7)
		if size == SizeByte {
			opcode = 0xC6
		}
		api := Op(opcode).WithModRM().WithDigit(0).WithOpOrd(OrdRmOnly)
		if size == SizeQword {
			api = api.WithREX()
		}
		immSize := size
		if immSize == SizeQword {
			immSize = SizeDword // imm32 sign-extended into r/m64 for C7
		}
		return api.WithImmAtIndex(1, immSize).WithLittleEndianImm(), nil
	case SymbolRef:
		size := operandSize(dst)
		api := Op(0xC7).WithModRM().WithDigit(0).WithOpOrd(OrdRmOnly)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api.WithImmAtIndex(1, SizeDword).WithLittleEndianImm(), nil
	default:
		// reg<-reg or reg<->mem: MR form is opcode 0x89/0x88 (dst is rm),
		// RM form is 0x8B/0x8A (dst is reg). MOV always prefers the form
		// where the memory operand (if any) sits at ModRM.rm.
		size := operandSize(dst)
		opcode := byte(0x89)
		if size == SizeByte {
			opcode = 0x88
		}
		if _, dstIsMem := dst.(Mem); dstIsMem {
			api := Op(opcode).WithModRM().WithOpOrd(OrdRmReg)
			if size == SizeQword {
				api = api.WithREX()
			}
			return api, nil
		}
		rOpcode := opcode + 2 // 0x8B or 0x8A
		api := Op(rOpcode).WithModRM().WithOpOrd(OrdRegRm)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	}
}

func operandSize(op Operand) Size {
	switch o := op.(type) {
	case Register:
		return o.Size()
	case Mem:
		return o.OperandSize
	case Number:
		return o.RealSize
	default:
		return SizeUnknown
	}
}

// dispatchPush handles PUSH reg (50+rd), PUSH imm (68/6A), PUSH r/m (FF /6).
func dispatchPush(ins Instruction) (GenAPI, error) {
	switch op := ins.Operand(0).(type) {
	case Register:
		base := byte(0x50) + op.ToByte()
		return Op(base), nil
	case Number:
		if op.SignedSize() == SizeByte {
			return Op(0x6A).WithImmAtIndex(0, SizeByte).WithLittleEndianImm(), nil
		}
		return Op(0x68).WithImmAtIndex(0, SizeDword).WithLittleEndianImm(), nil
	case Mem:
		return Op(0xFF).WithModRM().WithDigit(6).WithOpOrd(OrdRmOnly), nil
	default:
		return GenAPI{}, &EncodeError{Mnemonic: "push", Line: ins.Line, Message: "unsupported operand kind"}
	}
}

// dispatchPop handles POP reg (58+rd) and POP r/m (8F /0).
func dispatchPop(ins Instruction) (GenAPI, error) {
	switch op := ins.Operand(0).(type) {
	case Register:
		base := byte(0x58) + op.ToByte()
		return Op(base), nil
	case Mem:
		return Op(0x8F).WithModRM().WithDigit(0).WithOpOrd(OrdRmOnly), nil
	default:
		return GenAPI{}, &EncodeError{Mnemonic: "pop", Line: ins.Line, Message: "unsupported operand kind"}
	}
}

// dispatchLea always emits 8D /r; when the source is `[rip+sym]`, the
// relocation this produces is classified Lea but typed PC-relative,
// matching how a RIP-relative disp32 is actually resolved by a linker.
func dispatchLea(ins Instruction) (GenAPI, error) {
	size := operandSize(ins.Operand(0))
	api := Op(0x8D).WithModRM().WithOpOrd(OrdRegRm)
	if size == SizeQword {
		api = api.WithREX()
	}
	return api, nil
}

// arithDigit holds the /digit opcode extension for each classic
// ADD-family mnemonic, keyed the way the Intel manual
// groups them (ADD=0, OR=1, ADC=2, SBB=3, AND=4, SUB=5, XOR=6, CMP=7).
var arithDigit = map[string]byte{
	"add": 0, "or": 1, "adc": 2, "sbb": 3,
	"and": 4, "sub": 5, "xor": 6, "cmp": 7,
}

// dispatchArithFamily covers ADD/SUB/AND/OR/XOR/CMP/ADC/SBB: the classic
// 9-opcode families keyed on (dst kind, src kind, size, imm-fits-in-i8).
func dispatchArithFamily(ins Instruction) (GenAPI, error) {
	digit := arithDigit[ins.Mnemonic]
	dst := ins.Operand(0)
	src := ins.Operand(1)
	size := operandSize(dst)

	if imm, ok := src.(Number); ok {
		var api GenAPI
		if imm.SignedSize() == SizeByte && size != SizeByte {
			api = Op(0x83).WithModRM().WithDigit(digit).WithOpOrd(OrdRmOnly).
				WithImmAtIndex(1, SizeByte).WithLittleEndianImm()
		} else {
			opcode := byte(0x81)
			if size == SizeByte {
				opcode = 0x80
			}
			immSize := size
			if immSize == SizeQword {
				immSize = SizeDword
			}
			api = Op(opcode).WithModRM().WithDigit(digit).WithOpOrd(OrdRmOnly).
				WithImmAtIndex(1, immSize).WithLittleEndianImm()
		}
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	}

	// reg/mem <-> reg form: base opcode for the family is digit*8, +0/+1
	// for MR byte/wide, +2/+3 for RM byte/wide (standard Intel layout).
	base := digit * 8
	if _, dstIsMem := dst.(Mem); dstIsMem {
		opcode := base + 1
		if size == SizeByte {
			opcode = base
		}
		api := Op(opcode).WithModRM().WithOpOrd(OrdRmReg)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	}
	opcode := base + 3
	if size == SizeByte {
		opcode = base + 2
	}
	api := Op(opcode).WithModRM().WithOpOrd(OrdRegRm)
	if size == SizeQword {
		api = api.WithREX()
	}
	return api, nil
}

func dispatchTest(ins Instruction) (GenAPI, error) {
	dst := ins.Operand(0)
	src := ins.Operand(1)
	size := operandSize(dst)

	if _, ok := src.(Number); ok {
		opcode := byte(0xF7)
		if size == SizeByte {
			opcode = 0xF6
		}
		immSize := size
		if immSize == SizeQword {
			immSize = SizeDword
		}
		api := Op(opcode).WithModRM().WithDigit(0).WithOpOrd(OrdRmOnly).
			WithImmAtIndex(1, immSize).WithLittleEndianImm()
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	}

	opcode := byte(0x85)
	if size == SizeByte {
		opcode = 0x84
	}
	api := Op(opcode).WithModRM().WithOpOrd(OrdRmReg)
	if size == SizeQword {
		api = api.WithREX()
	}
	return api, nil
}

// dispatchImul covers the 1-, 2-, and 3-operand forms.
func dispatchImul(ins Instruction) (GenAPI, error) {
	switch len(ins.Operands) {
	case 1:
		size := operandSize(ins.Operand(0))
		opcode := byte(0xF7)
		if size == SizeByte {
			opcode = 0xF6
		}
		api := Op(opcode).WithModRM().WithDigit(5).WithOpOrd(OrdRmOnly)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	case 2:
		size := operandSize(ins.Operand(0))
		api := Op(0x0F, 0xAF).WithModRM().WithOpOrd(OrdRegRm)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	default:
		size := operandSize(ins.Operand(0))
		imm, _ := ins.Operand(2).(Number)
		var api GenAPI
		if imm.SignedSize() == SizeByte {
			api = Op(0x6B).WithModRM().WithOpOrd(OrdRegRm).WithImmAtIndex(2, SizeByte).WithLittleEndianImm()
		} else {
			api = Op(0x69).WithModRM().WithOpOrd(OrdRegRm).WithImmAtIndex(2, SizeDword).WithLittleEndianImm()
		}
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	}
}

// dispatchXchg special-cases AX/EAX/RAX <-> reg as the short `90+rd` form.
func dispatchXchg(ins Instruction) (GenAPI, error) {
	a, aok := ins.Operand(0).(Register)
	b, bok := ins.Operand(1).(Register)
	if aok && bok {
		if a.Name == "rax" || a.Name == "eax" || a.Name == "ax" {
			base := byte(0x90) + b.ToByte()
			api := Op(base)
			if a.Size() == SizeQword {
				api = api.WithREX()
			}
			return api, nil
		}
		if b.Name == "rax" || b.Name == "eax" || b.Name == "ax" {
			base := byte(0x90) + a.ToByte()
			api := Op(base)
			if b.Size() == SizeQword {
				api = api.WithREX()
			}
			return api, nil
		}
	}
	size := operandSize(ins.Operand(0))
	opcode := byte(0x87)
	if size == SizeByte {
		opcode = 0x86
	}
	api := Op(opcode).WithModRM().WithOpOrd(OrdRmReg)
	if size == SizeQword {
		api = api.WithREX()
	}
	return api, nil
}

var shiftDigit = map[string]byte{
	"rol": 0, "ror": 1, "rcl": 2, "rcr": 3,
	"shl": 4, "sal": 4, "shr": 5, "sar": 7,
}

// dispatchShiftFamily dispatches on the second operand: literal 1 (special
// short opcode), CL (dedicated opcode), or an imm8.
func dispatchShiftFamily(ins Instruction) (GenAPI, error) {
	digit := shiftDigit[ins.Mnemonic]
	size := operandSize(ins.Operand(0))

	switch src := ins.Operand(1).(type) {
	case Register:
		if src.Name != "cl" {
			return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "shift count register must be cl"}
		}
		opcode := byte(0xD3)
		if size == SizeByte {
			opcode = 0xD2
		}
		api := Op(opcode).WithModRM().WithDigit(digit).WithOpOrd(OrdRmOnly)
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	case Number:
		if src.Value == 1 {
			opcode := byte(0xD1)
			if size == SizeByte {
				opcode = 0xD0
			}
			api := Op(opcode).WithModRM().WithDigit(digit).WithOpOrd(OrdRmOnly)
			if size == SizeQword {
				api = api.WithREX()
			}
			return api, nil
		}
		opcode := byte(0xC1)
		if size == SizeByte {
			opcode = 0xC0
		}
		api := Op(opcode).WithModRM().WithDigit(digit).WithOpOrd(OrdRmOnly).
			WithImmAtIndex(1, SizeByte).WithLittleEndianImm()
		if size == SizeQword {
			api = api.WithREX()
		}
		return api, nil
	default:
		return GenAPI{}, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "unsupported shift count operand"}
	}
}

// dispatchJmp picks register/memory indirect (FF /4) vs. a PC-relative
// symbol (E9 rel32; short-form rel8 is left to a peephole pass, out of
// scope per spec.md's Non-goals).
func dispatchJmp(ins Instruction) (GenAPI, error) {
	switch ins.Operand(0).(type) {
	case Register, Mem:
		return Op(0xFF).WithModRM().WithDigit(4).WithOpOrd(OrdRmOnly), nil
	default:
		return Op(0xE9).WithImmAtIndex(0, SizeDword).WithLittleEndianImm(), nil
	}
}

func dispatchCall(ins Instruction) (GenAPI, error) {
	switch ins.Operand(0).(type) {
	case Register, Mem:
		return Op(0xFF).WithModRM().WithDigit(2).WithOpOrd(OrdRmOnly), nil
	default:
		return Op(0xE8).WithImmAtIndex(0, SizeDword).WithLittleEndianImm(), nil
	}
}

func jccDescriptor(condition byte) GenAPI {
	return Op(0x0F, 0x80+condition).WithImmAtIndex(0, SizeDword).WithLittleEndianImm()
}

func cmovDescriptor(condition byte) GenAPI {
	return Op(0x0F, 0x40+condition).WithModRM().WithOpOrd(OrdRegRm)
}

func setccDescriptor(condition byte) GenAPI {
	return Op(0x0F, 0x90+condition).WithModRM().WithDigit(0).WithOpOrd(OrdRmOnly)
}
