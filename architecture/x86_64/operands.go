package x86_64

// Operand is implemented by every concrete operand kind the encoder accepts:
// Register, Mem, Number (an immediate), SymbolRef, and StringOperand. It
// carries no behaviour of its own — dispatch and encoding use type switches
// on the concrete type, which is the idiomatic substitute for the source's
// tagged union.
type Operand interface {
	operandKind() string
}

func (Register) operandKind() string     { return "register" }
func (Mem) operandKind() string           { return "memory" }
func (Number) operandKind() string        { return "immediate" }
func (SymbolRef) operandKind() string     { return "symbol" }
func (StringOperand) operandKind() string { return "string" }

// Number is a signed or unsigned integer immediate carrying its declared
// width. RealSize is the width the source text asked for; SignedSize is the
// narrowest size that can hold Value — used by mnemonic families (ADD, etc.)
// that choose a shorter imm8-sign-extend opcode when legal.
type Number struct {
	Value    int64
	Unsigned bool
	RealSize Size
}

// SignedSize returns the narrowest Size that can represent Value as a signed
// quantity. Invariant: SignedSize(n) <= n.RealSize for any well-formed Number.
func (n Number) SignedSize() Size {
	v := n.Value
	switch {
	case v >= -128 && v <= 127:
		return SizeByte
	case v >= -32768 && v <= 32767:
		return SizeWord
	case v >= -2147483648 && v <= 2147483647:
		return SizeDword
	default:
		return SizeQword
	}
}

// Bytes returns Value serialised to exactly width bytes, little-endian
// unless bigEndian is set.
func (n Number) Bytes(width int, bigEndian bool) []byte {
	buf := make([]byte, width)
	v := uint64(n.Value)
	for i := 0; i < width; i++ {
		b := byte(v >> (8 * uint(i)))
		if bigEndian {
			buf[width-1-i] = b
		} else {
			buf[i] = b
		}
	}
	return buf
}

// StringOperand is a literal ASCII operand, used by a small number of string
// and data-declaration pseudo-instructions.
type StringOperand struct {
	Value string
}

// RelocType mirrors the ELF i386/x86-64 relocation types the encoder can
// emit. It is carried on SymbolRef and Relocation alike.
type RelocType int

const (
	RelocNone RelocType = iota
	RelocAbs32
	RelocAbs64
	RelocPC32
)

// SymbolRef is a reference to a label or variable appearing as an operand:
// `call foo`, `lea rax, [rip+foo]`, `mov rax, [bar]`. Addend and RelocType
// are copied into the recorded Relocation as given; neither the dispatcher
// nor the addressing generator fills them in.
type SymbolRef struct {
	Name      string
	Addend    int64
	RelocType RelocType
	Size      Size // declared size, 0 if unspecified (defaults to dword)
}

// Mem describes one of the six legal x86-64 effective-address forms:
// direct register, register+disp, SIB (base+index*scale[+disp]), index-only
// (no base), index+disp, and RIP-relative. Which form applies is derived
// from which fields are non-nil/non-zero, mirroring the source's variant
// enum without needing a separate discriminant.
type Mem struct {
	Base        *Register
	Index       *Register
	Scale       byte // 1, 2, 4, or 8; meaningless if Index is nil
	Disp        int32
	HasDisp     bool
	Symbol      *SymbolRef // non-nil for `[rip+sym]` or `[sym]` forms
	OperandSize Size       // size of the pointed-to data, e.g. dword ptr
	AddrSize    Size       // 16, 32, or 64-bit addressing
	Segment     *Register  // optional segment override
	RIPRelative bool
}

// UsesSIB reports whether this memory operand requires a SIB byte: an
// explicit index, or a base register whose low 3 bits are 100 (RSP/R12),
// which architecturally always needs a SIB to disambiguate from ModR/M's
// own /4 escape.
func (m Mem) UsesSIB() bool {
	if m.Index != nil {
		return true
	}
	return m.Base != nil && m.Base.ToByte() == 0b100
}

// IndexOnly reports whether the form has an index/scale but no base —
// encoded with SIB.base=101 and a mandatory disp32.
func (m Mem) IndexOnly() bool {
	return m.Base == nil && m.Index != nil
}

// InstructionFlags records the modifiers carried alongside mnemonic and
// operands that change how an instruction is encoded without being an
// operand themselves.
type InstructionFlags struct {
	AdditionalMnemonic string // "lock", "rep", "repe", "repz", "repne", "repnz"
	ForceVEX           bool
	ForceEVEX          bool
	ForceAPX           bool

	// EVEX-only modifiers.
	SAE       bool
	Zeroing   bool
	Broadcast bool
	RoundMode int // 0-3, meaningful only when RoundSet is true
	RoundSet  bool
	MaskReg   int // 0-7, opmask register index; 0 means "no mask" (k0)
}

// Instruction is the validated AST node the encoder core consumes: a
// mnemonic, up to four operands, the source line it came from (for
// diagnostics), and the flags above.
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Line     int
	Flags    InstructionFlags
	Bits     int // assembly target width: 16, 32, or 64
}

// Operand returns the i'th operand, or nil if the instruction has fewer
// than i+1 operands.
func (ins Instruction) Operand(i int) Operand {
	if i < 0 || i >= len(ins.Operands) {
		return nil
	}
	return ins.Operands[i]
}

// LogicalSize returns the instruction's effective operand size: the widest
// explicit operand size among its operands. Used by the size-override and
// REX.W computations in §4.3/§4.5 of the encoding model.
func (ins Instruction) LogicalSize() Size {
	var widest Size
	for _, op := range ins.Operands {
		var s Size
		switch o := op.(type) {
		case Register:
			s = o.Size()
		case Mem:
			s = o.OperandSize
		case Number:
			s = o.RealSize
		}
		if s.Bytes() > widest.Bytes() {
			widest = s
		}
	}
	return widest
}
