package x86_64

// Flag names for GenAPI's bool table. Bit index is the role; see §4.2 of
// the encoding model this package implements.
const (
	FlagREX = iota
	FlagVEX
	FlagEVEX
	FlagCanH66
	FlagImmLE
	FlagImmBE
	FlagCanSeg
	FlagUseModRM
	FlagOneByteConst
	FlagTwoByteConst
	FlagImmAtIndex
	FlagSetModRMMod
	FlagStrictPfx
	FlagFixedSize
)

// BoolTable16 is a 16-bit flag set with named bit positions, matching the
// source's compact bool table. Kept as a plain uint16 rather than an array
// of bools: setting/testing a single bit is one shift-and-mask, and the
// whole table still fits in the same machine word the builder copies on
// every chained call.
type BoolTable16 uint16

func (t BoolTable16) has(bit int) bool     { return t&(1<<uint(bit)) != 0 }
func (t BoolTable16) set(bit int) BoolTable16 { return t | (1 << uint(bit)) }

// OpOrd is the operand-order permutation: which syntactic operand slot
// (0-3) maps to which encoding site. Only the first three slots are
// meaningful; "third" exists for the rare is4/is5 VEX forms with an
// immediate-encoded fourth register.
type OpOrdSlot int

const (
	OpOrdNone OpOrdSlot = iota
	OpOrdModRMRm
	OpOrdModRMReg
	OpOrdVexVVVV
	OpOrdThird
)

// OpOrd names, for each syntactic operand position, which encoding site it
// feeds. A reimplementation may use an enum-valued array of length 4 rather
// than a packed byte — see the source's own design note on this point.
type OpOrd [4]OpOrdSlot

// Common operand orders used throughout the dispatch tables.
var (
	OrdNone      = OpOrd{}
	OrdRmReg     = OpOrd{OpOrdModRMRm, OpOrdModRMReg}
	OrdRegRm     = OpOrd{OpOrdModRMReg, OpOrdModRMRm}
	OrdRmOnly    = OpOrd{OpOrdModRMRm}
	OrdRegOnly   = OpOrd{OpOrdModRMReg}
	OrdRegRmVvvv = OpOrd{OpOrdModRMReg, OpOrdModRMRm, OpOrdVexVVVV}
	OrdRegVvvvRm = OpOrd{OpOrdModRMReg, OpOrdVexVVVV, OpOrdModRMRm}
)

// ModrmOverride forces an explicit reg or rm field value instead of
// deriving it from the operand-order mapping — used for opcode-extension
// "/n" forms (SHL family, the classic `83 /0` ADD-family encodings, etc.).
type ModrmOverride struct {
	RegSet bool
	Reg    byte
	RmSet  bool
	Rm     byte
}

// Opcode packs up to 7 opcode bytes with an explicit length, mirroring the
// source's single-word packed representation. Bytes are stored in emission
// order.
type Opcode struct {
	bytes [7]byte
	len   int
}

// NewOpcode builds an Opcode from 1-7 bytes in emission order.
func NewOpcode(bs ...byte) Opcode {
	if len(bs) > 7 {
		panic("x86_64: opcode exceeds 7 bytes")
	}
	var o Opcode
	copy(o.bytes[:], bs)
	o.len = len(bs)
	return o
}

// Collect returns the opcode bytes in emission order.
func (o Opcode) Collect() []byte {
	out := make([]byte, o.len)
	copy(out, o.bytes[:o.len])
	return out
}

// VexLength is the vector-length field stored in GenAPI's high auxiliary
// byte: unspecified (operand-size-derived), 128-bit, 256-bit, or 512-bit.
// EVEX additionally overloads this field with a 2-bit rounding control —
// see RoundMode on InstructionFlags, consulted directly by the EVEX prefix
// generator rather than threaded back through VexLength.
type VexLength int

const (
	VexLenAuto VexLength = iota
	VexLen128
	VexLen256
	VexLen512
)

// GenAPI is the declarative encoding descriptor: everything the encoder
// core needs to know to assemble one instruction variant, independent of
// which mnemonic it belongs to. It is built by chained setters, each of
// which returns a new value — the descriptor never knows which mnemonic it
// describes and is consumed only by Assemble (encode.go).
type GenAPI struct {
	opcode  Opcode
	flags   BoolTable16
	prefix  byte // dual purpose: legacy mandatory prefix, or packed VEX/EVEX W|map|pp
	modrm   ModrmOverride
	opOrd   OpOrd
	vexLen  VexLength
	immIdx  int  // operand index for FlagImmAtIndex
	immSize Size // size for FlagImmAtIndex / FlagFixedSize
	constB  byte // value for FlagOneByteConst / low byte of FlagTwoByteConst
	constB2 byte // high byte of FlagTwoByteConst
}

// Op starts a descriptor with its opcode bytes.
func Op(bs ...byte) GenAPI {
	return GenAPI{opcode: NewOpcode(bs...)}
}

func (g GenAPI) WithFlag(bit int) GenAPI {
	g.flags = g.flags.set(bit)
	return g
}

func (g GenAPI) HasFlag(bit int) bool { return g.flags.has(bit) }

func (g GenAPI) WithModRM() GenAPI { return g.WithFlag(FlagUseModRM) }

func (g GenAPI) WithOpOrd(ord OpOrd) GenAPI {
	g.opOrd = ord
	return g
}

func (g GenAPI) OpOrd() OpOrd { return g.opOrd }

func (g GenAPI) WithModrmOverride(ov ModrmOverride) GenAPI {
	g.modrm = ov
	return g
}

func (g GenAPI) ModrmOverride() ModrmOverride { return g.modrm }

// WithDigit forces ModR/M.reg to a fixed opcode-extension digit (0-7), the
// "/digit" notation in the Intel manuals.
func (g GenAPI) WithDigit(digit byte) GenAPI {
	return g.WithModRM().WithModrmOverride(ModrmOverride{RegSet: true, Reg: digit})
}

// WithPrefix sets the legacy mandatory prefix byte (66/F2/F3) when neither
// VEX nor EVEX is set.
func (g GenAPI) WithPrefix(b byte) GenAPI {
	g.prefix = b
	return g
}

func (g GenAPI) Prefix() byte { return g.prefix }

// WithREX marks the variant as requiring REX.W (64-bit default operand
// size). The flag by itself makes rexNeeded emit a REX byte with W set;
// the R/X/B bits are still computed from the operands.
func (g GenAPI) WithREX() GenAPI { return g.WithFlag(FlagREX) }

// WithVEX configures a 1-3 opcode-byte variant as a VEX form. mmmmm is the
// compressed opcode-map selector (1=0F, 2=0F38, 3=0F3A); pp is the
// compressed mandatory-prefix selector (0=none,1=66,2=F3,3=F2); w is the
// VEX.W bit.
func (g GenAPI) WithVEX(w bool, mmmmm, pp byte) GenAPI {
	g = g.WithFlag(FlagVEX)
	g.prefix = packVexPrefix(w, mmmmm, pp)
	return g
}

// WithEVEX configures a variant as an EVEX form. mm is the raw 2-bit
// opcode-map field; pp and w are as in WithVEX.
func (g GenAPI) WithEVEX(w bool, mm, pp byte) GenAPI {
	g = g.WithFlag(FlagEVEX)
	g.prefix = packVexPrefix(w, mm, pp)
	return g
}

func packVexPrefix(w bool, mmmmm, pp byte) byte {
	var wb byte
	if w {
		wb = 1
	}
	return (wb << 7) | ((mmmmm & 0x1F) << 2) | (pp & 0x3)
}

func unpackVexPrefix(p byte) (w bool, mmmmm, pp byte) {
	w = p&0x80 != 0
	mmmmm = (p >> 2) & 0x1F
	pp = p & 0x3
	return
}

func (g GenAPI) WithVexLength(l VexLength) GenAPI {
	g.vexLen = l
	return g
}

func (g GenAPI) VexLength() VexLength { return g.vexLen }

// WithImmAtIndex marks operand i as the source of the trailing immediate
// bytes, serialised to size bytes.
func (g GenAPI) WithImmAtIndex(i int, size Size) GenAPI {
	g = g.WithFlag(FlagImmAtIndex)
	g.immIdx = i
	g.immSize = size
	return g
}

func (g GenAPI) ImmIndex() int  { return g.immIdx }
func (g GenAPI) ImmSize() Size  { return g.immSize }

func (g GenAPI) WithLittleEndianImm() GenAPI { return g.WithFlag(FlagImmLE) }
func (g GenAPI) WithBigEndianImm() GenAPI    { return g.WithFlag(FlagImmBE) }

// WithOneByteConst appends a single literal constant byte after the
// operand encoding, used by a handful of fixed-suffix opcodes.
func (g GenAPI) WithOneByteConst(b byte) GenAPI {
	g = g.WithFlag(FlagOneByteConst)
	g.constB = b
	return g
}

func (g GenAPI) OneByteConst() byte { return g.constB }

// WithTwoByteConst appends two literal constant bytes (low byte first).
func (g GenAPI) WithTwoByteConst(lo, hi byte) GenAPI {
	g = g.WithFlag(FlagTwoByteConst)
	g.constB, g.constB2 = lo, hi
	return g
}

func (g GenAPI) TwoByteConst() (lo, hi byte) { return g.constB, g.constB2 }

func (g GenAPI) WithCanSeg() GenAPI     { return g.WithFlag(FlagCanSeg) }
func (g GenAPI) WithCanH66() GenAPI     { return g.WithFlag(FlagCanH66) }
func (g GenAPI) WithStrictPfx() GenAPI  { return g.WithFlag(FlagStrictPfx) }

// WithFixedSize marks the variant's operand size as fixed by the mnemonic
// itself (string-op suffixes like LODSW/SCASD) rather than inferred from
// operands; size is the descriptor's own size for §4.3's narrower
// 66H-emission rule.
func (g GenAPI) WithFixedSize(size Size) GenAPI {
	g = g.WithFlag(FlagFixedSize)
	g.immSize = size
	return g
}

// OperandSites returns, for an instruction, the triple of operands mapped
// to (ModRM.rm, ModRM.reg, VEX.vvvv) by inspecting every order slot of the
// descriptor. Any site not present in the order yields nil.
func (g GenAPI) OperandSites(ins Instruction) (rm, reg, vvvv Operand) {
	for i, slot := range g.opOrd {
		op := ins.Operand(i)
		if op == nil {
			continue
		}
		switch slot {
		case OpOrdModRMRm:
			rm = op
		case OpOrdModRMReg:
			reg = op
		case OpOrdVexVVVV:
			vvvv = op
		}
	}
	return
}
