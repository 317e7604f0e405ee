package x86_64

import "strings"

// RegisterType represents the type/size of a register.
type RegisterType int

const (
	Register8       RegisterType = iota // 8-bit register
	Register16                          // 16-bit register
	Register32                          // 32-bit register
	Register64                          // 64-bit register
	RegisterMMX                         // MMX register (64-bit)
	RegisterXMM                         // XMM register (128-bit)
	RegisterYMM                         // YMM register (256-bit)
	RegisterZMM                         // ZMM register (512-bit)
	RegisterSegment                     // Segment register
	RegisterControl                     // Control register
	RegisterDebug                       // Debug register
)

// Register represents a single x86-64 register operand. Encoding is the raw
// 0-31 register number used by ModR/M, SIB, REX and VEX/EVEX extension
// bits — callers never need to re-derive it from the name.
type Register struct {
	Name     string
	Type     RegisterType
	Encoding byte // Register encoding value (0-31)
}

// Size returns the operand Size implied by the register's type.
func (r Register) Size() Size {
	switch r.Type {
	case Register8:
		return SizeByte
	case Register16:
		return SizeWord
	case Register32, RegisterControl, RegisterDebug:
		return SizeDword
	case Register64, RegisterMMX:
		return SizeQword
	case RegisterXMM:
		return SizeXword
	case RegisterYMM:
		return SizeYword
	case RegisterZMM:
		return SizeZword
	case RegisterSegment:
		return SizeWord
	default:
		return SizeUnknown
	}
}

// ToByte returns the low 3 bits of the register's encoding, the portion
// that fits directly into a ModR/M or SIB field. Bit 3 (needed for
// R8-R15, XMM8-15, etc.) is surfaced separately by NeedsExtensionBit, since
// that bit lives in REX/VEX/EVEX, never in ModR/M itself.
func (r Register) ToByte() byte {
	return r.Encoding & 0x07
}

// NeedsExtensionBit reports whether encoding this register requires setting
// an extension bit (REX.R/X/B, VEX/EVEX's inverted equivalents) because its
// encoding number is >= 8.
func (r Register) NeedsExtensionBit() bool {
	return r.Encoding >= 8
}

// NeedsFurtherExtensionBit reports whether this register needs EVEX's
// second extension bit (R'/X'/B'/V'), true for registers numbered 16-31 —
// only reachable for the ZMM/YMM/XMM family under EVEX.
func (r Register) NeedsFurtherExtensionBit() bool {
	return r.Encoding >= 16
}

// NeedsRex reports whether referencing this register forces a REX prefix to
// be present even when no other condition would require one — true for the
// SPL/BPL/SIL/DIL byte registers, which alias AH/CH/DH/BH in their absence.
func (r Register) NeedsRex() bool {
	if r.Type == Register8 {
		switch strings.ToLower(r.Name) {
		case "spl", "bpl", "sil", "dil":
			return true
		}
	}
	return r.NeedsExtensionBit()
}

// IsHighByte reports whether the register is one of the legacy high-byte
// 8-bit registers (AH/CH/DH/BH), which cannot be addressed once a REX
// prefix is present.
func (r Register) IsHighByte() bool {
	if r.Type != Register8 {
		return false
	}
	switch strings.ToLower(r.Name) {
	case "ah", "ch", "dh", "bh":
		return true
	}
	return false
}

// General Purpose Registers - 64-bit
var (
	RAX = Register{Name: "rax", Type: Register64, Encoding: 0}
	RCX = Register{Name: "rcx", Type: Register64, Encoding: 1}
	RDX = Register{Name: "rdx", Type: Register64, Encoding: 2}
	RBX = Register{Name: "rbx", Type: Register64, Encoding: 3}
	RSP = Register{Name: "rsp", Type: Register64, Encoding: 4}
	RBP = Register{Name: "rbp", Type: Register64, Encoding: 5}
	RSI = Register{Name: "rsi", Type: Register64, Encoding: 6}
	RDI = Register{Name: "rdi", Type: Register64, Encoding: 7}
	R8  = Register{Name: "r8", Type: Register64, Encoding: 8}
	R9  = Register{Name: "r9", Type: Register64, Encoding: 9}
	R10 = Register{Name: "r10", Type: Register64, Encoding: 10}
	R11 = Register{Name: "r11", Type: Register64, Encoding: 11}
	R12 = Register{Name: "r12", Type: Register64, Encoding: 12}
	R13 = Register{Name: "r13", Type: Register64, Encoding: 13}
	R14 = Register{Name: "r14", Type: Register64, Encoding: 14}
	R15 = Register{Name: "r15", Type: Register64, Encoding: 15}
)

// General Purpose Registers - 32-bit
var (
	EAX  = Register{Name: "eax", Type: Register32, Encoding: 0}
	ECX  = Register{Name: "ecx", Type: Register32, Encoding: 1}
	EDX  = Register{Name: "edx", Type: Register32, Encoding: 2}
	EBX  = Register{Name: "ebx", Type: Register32, Encoding: 3}
	ESP  = Register{Name: "esp", Type: Register32, Encoding: 4}
	EBP  = Register{Name: "ebp", Type: Register32, Encoding: 5}
	ESI  = Register{Name: "esi", Type: Register32, Encoding: 6}
	EDI  = Register{Name: "edi", Type: Register32, Encoding: 7}
	R8D  = Register{Name: "r8d", Type: Register32, Encoding: 8}
	R9D  = Register{Name: "r9d", Type: Register32, Encoding: 9}
	R10D = Register{Name: "r10d", Type: Register32, Encoding: 10}
	R11D = Register{Name: "r11d", Type: Register32, Encoding: 11}
	R12D = Register{Name: "r12d", Type: Register32, Encoding: 12}
	R13D = Register{Name: "r13d", Type: Register32, Encoding: 13}
	R14D = Register{Name: "r14d", Type: Register32, Encoding: 14}
	R15D = Register{Name: "r15d", Type: Register32, Encoding: 15}
)

// General Purpose Registers - 16-bit
var (
	AX   = Register{Name: "ax", Type: Register16, Encoding: 0}
	CX   = Register{Name: "cx", Type: Register16, Encoding: 1}
	DX   = Register{Name: "dx", Type: Register16, Encoding: 2}
	BX   = Register{Name: "bx", Type: Register16, Encoding: 3}
	SP   = Register{Name: "sp", Type: Register16, Encoding: 4}
	BP   = Register{Name: "bp", Type: Register16, Encoding: 5}
	SI   = Register{Name: "si", Type: Register16, Encoding: 6}
	DI   = Register{Name: "di", Type: Register16, Encoding: 7}
	R8W  = Register{Name: "r8w", Type: Register16, Encoding: 8}
	R9W  = Register{Name: "r9w", Type: Register16, Encoding: 9}
	R10W = Register{Name: "r10w", Type: Register16, Encoding: 10}
	R11W = Register{Name: "r11w", Type: Register16, Encoding: 11}
	R12W = Register{Name: "r12w", Type: Register16, Encoding: 12}
	R13W = Register{Name: "r13w", Type: Register16, Encoding: 13}
	R14W = Register{Name: "r14w", Type: Register16, Encoding: 14}
	R15W = Register{Name: "r15w", Type: Register16, Encoding: 15}
)

// General Purpose Registers - 8-bit (low byte)
var (
	AL   = Register{Name: "al", Type: Register8, Encoding: 0}
	CL   = Register{Name: "cl", Type: Register8, Encoding: 1}
	DL   = Register{Name: "dl", Type: Register8, Encoding: 2}
	BL   = Register{Name: "bl", Type: Register8, Encoding: 3}
	SPL  = Register{Name: "spl", Type: Register8, Encoding: 4}
	BPL  = Register{Name: "bpl", Type: Register8, Encoding: 5}
	SIL  = Register{Name: "sil", Type: Register8, Encoding: 6}
	DIL  = Register{Name: "dil", Type: Register8, Encoding: 7}
	R8B  = Register{Name: "r8b", Type: Register8, Encoding: 8}
	R9B  = Register{Name: "r9b", Type: Register8, Encoding: 9}
	R10B = Register{Name: "r10b", Type: Register8, Encoding: 10}
	R11B = Register{Name: "r11b", Type: Register8, Encoding: 11}
	R12B = Register{Name: "r12b", Type: Register8, Encoding: 12}
	R13B = Register{Name: "r13b", Type: Register8, Encoding: 13}
	R14B = Register{Name: "r14b", Type: Register8, Encoding: 14}
	R15B = Register{Name: "r15b", Type: Register8, Encoding: 15}
)

// General Purpose Registers - 8-bit (high byte, legacy — require no REX)
var (
	AH = Register{Name: "ah", Type: Register8, Encoding: 4}
	CH = Register{Name: "ch", Type: Register8, Encoding: 5}
	DH = Register{Name: "dh", Type: Register8, Encoding: 6}
	BH = Register{Name: "bh", Type: Register8, Encoding: 7}
)

// Segment Registers
var (
	ES = Register{Name: "es", Type: RegisterSegment, Encoding: 0}
	CS = Register{Name: "cs", Type: RegisterSegment, Encoding: 1}
	SS = Register{Name: "ss", Type: RegisterSegment, Encoding: 2}
	DS = Register{Name: "ds", Type: RegisterSegment, Encoding: 3}
	FS = Register{Name: "fs", Type: RegisterSegment, Encoding: 4}
	GS = Register{Name: "gs", Type: RegisterSegment, Encoding: 5}
)

// Control Registers
var (
	CR0 = Register{Name: "cr0", Type: RegisterControl, Encoding: 0}
	CR2 = Register{Name: "cr2", Type: RegisterControl, Encoding: 2}
	CR3 = Register{Name: "cr3", Type: RegisterControl, Encoding: 3}
	CR4 = Register{Name: "cr4", Type: RegisterControl, Encoding: 4}
	CR8 = Register{Name: "cr8", Type: RegisterControl, Encoding: 8}
)

// Debug Registers
var (
	DR0 = Register{Name: "dr0", Type: RegisterDebug, Encoding: 0}
	DR1 = Register{Name: "dr1", Type: RegisterDebug, Encoding: 1}
	DR2 = Register{Name: "dr2", Type: RegisterDebug, Encoding: 2}
	DR3 = Register{Name: "dr3", Type: RegisterDebug, Encoding: 3}
	DR6 = Register{Name: "dr6", Type: RegisterDebug, Encoding: 6}
	DR7 = Register{Name: "dr7", Type: RegisterDebug, Encoding: 7}
)

// MMX Registers
var (
	MM0 = Register{Name: "mm0", Type: RegisterMMX, Encoding: 0}
	MM1 = Register{Name: "mm1", Type: RegisterMMX, Encoding: 1}
	MM2 = Register{Name: "mm2", Type: RegisterMMX, Encoding: 2}
	MM3 = Register{Name: "mm3", Type: RegisterMMX, Encoding: 3}
	MM4 = Register{Name: "mm4", Type: RegisterMMX, Encoding: 4}
	MM5 = Register{Name: "mm5", Type: RegisterMMX, Encoding: 5}
	MM6 = Register{Name: "mm6", Type: RegisterMMX, Encoding: 6}
	MM7 = Register{Name: "mm7", Type: RegisterMMX, Encoding: 7}
)

// xmmRegisters, ymmRegisters, zmmRegisters are built programmatically
// since each family spans 16 or 32 members with no other irregularity.
var (
	xmmRegisters = buildVectorFamily("xmm", RegisterXMM, 16)
	ymmRegisters = buildVectorFamily("ymm", RegisterYMM, 16)
	zmmRegisters = buildVectorFamily("zmm", RegisterZMM, 32)
)

func buildVectorFamily(prefix string, t RegisterType, count int) []Register {
	regs := make([]Register, count)
	for i := 0; i < count; i++ {
		regs[i] = Register{Name: prefix + itoa(i), Type: t, Encoding: byte(i)}
	}
	return regs
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// RegistersByName is a map for looking up registers by their lower-case
// name, built once at package init from every declared register family.
var RegistersByName = buildRegistersByName()

func buildRegistersByName() map[string]Register {
	m := map[string]Register{
		"rax": RAX, "rcx": RCX, "rdx": RDX, "rbx": RBX,
		"rsp": RSP, "rbp": RBP, "rsi": RSI, "rdi": RDI,
		"r8": R8, "r9": R9, "r10": R10, "r11": R11,
		"r12": R12, "r13": R13, "r14": R14, "r15": R15,

		"eax": EAX, "ecx": ECX, "edx": EDX, "ebx": EBX,
		"esp": ESP, "ebp": EBP, "esi": ESI, "edi": EDI,
		"r8d": R8D, "r9d": R9D, "r10d": R10D, "r11d": R11D,
		"r12d": R12D, "r13d": R13D, "r14d": R14D, "r15d": R15D,

		"ax": AX, "cx": CX, "dx": DX, "bx": BX,
		"sp": SP, "bp": BP, "si": SI, "di": DI,
		"r8w": R8W, "r9w": R9W, "r10w": R10W, "r11w": R11W,
		"r12w": R12W, "r13w": R13W, "r14w": R14W, "r15w": R15W,

		"al": AL, "cl": CL, "dl": DL, "bl": BL,
		"spl": SPL, "bpl": BPL, "sil": SIL, "dil": DIL,
		"r8b": R8B, "r9b": R9B, "r10b": R10B, "r11b": R11B,
		"r12b": R12B, "r13b": R13B, "r14b": R14B, "r15b": R15B,
		"ah": AH, "ch": CH, "dh": DH, "bh": BH,

		"es": ES, "cs": CS, "ss": SS, "ds": DS, "fs": FS, "gs": GS,

		"cr0": CR0, "cr2": CR2, "cr3": CR3, "cr4": CR4, "cr8": CR8,

		"dr0": DR0, "dr1": DR1, "dr2": DR2, "dr3": DR3, "dr6": DR6, "dr7": DR7,

		"mm0": MM0, "mm1": MM1, "mm2": MM2, "mm3": MM3,
		"mm4": MM4, "mm5": MM5, "mm6": MM6, "mm7": MM7,
	}
	for _, r := range xmmRegisters {
		m[r.Name] = r
	}
	for _, r := range ymmRegisters {
		m[r.Name] = r
	}
	for _, r := range zmmRegisters {
		m[r.Name] = r
	}
	return m
}

// LookupRegister resolves a register by name, case-insensitively. The bool
// result is false if the name is not a recognised register.
func LookupRegister(name string) (Register, bool) {
	r, ok := RegistersByName[strings.ToLower(name)]
	return r, ok
}
