package x86_64

// rexNeeded reports whether the instruction requires a REX prefix: the
// descriptor carries FlagREX, any operand register numbered R8-R15 or one of
// the SPL/BPL/SIL/DIL low-byte registers, or a memory operand whose
// base/index is extended. The instruction's logical size is not consulted:
// a qword operation gets REX only when its descriptor sets FlagREX.
func rexNeeded(api GenAPI, ins Instruction) bool {
	if api.HasFlag(FlagREX) {
		return true
	}
	for _, op := range ins.Operands {
		switch o := op.(type) {
		case Register:
			if o.NeedsRex() {
				return true
			}
		case Mem:
			if o.Base != nil && o.Base.NeedsExtensionBit() {
				return true
			}
			if o.Index != nil && o.Index.NeedsExtensionBit() {
				return true
			}
		}
	}
	return false
}

// buildREX assembles the REX byte `0100_WRXB` for the given instruction and
// descriptor. W mirrors the descriptor's REX flag (qword default-size
// operations); R/X/B extend ModRM.reg, SIB.index, and ModRM.rm/SIB.base/the
// `+rd` opcode tail respectively.
func buildREX(api GenAPI, ins Instruction) byte {
	rex := byte(0x40)

	if api.HasFlag(FlagREX) {
		rex |= 0x08 // W
	}

	rm, reg, _ := api.OperandSites(ins)

	if r, ok := reg.(Register); ok && r.NeedsExtensionBit() {
		rex |= 0x04 // R
	}
	switch o := rm.(type) {
	case Register:
		if o.NeedsExtensionBit() {
			rex |= 0x01 // B
		}
	case Mem:
		if o.Base != nil && o.Base.NeedsExtensionBit() {
			rex |= 0x01 // B
		}
		if o.Index != nil && o.Index.NeedsExtensionBit() {
			rex |= 0x02 // X
		}
	}

	// Plus-register opcodes (`50+rd`, etc.) encode the sole register
	// operand directly; if it wasn't routed through the operand-order
	// mapping, still honour its extension bit.
	if rm == nil && reg == nil {
		for _, op := range ins.Operands {
			if r, ok := op.(Register); ok && r.NeedsExtensionBit() {
				rex |= 0x01
				break
			}
		}
	}

	return rex
}

// legacyAdditionalPrefix returns the single-byte LOCK/REP/REPNE prefix
// implied by Instruction.Flags.AdditionalMnemonic, or 0 if none applies.
func legacyAdditionalPrefix(flags InstructionFlags) (byte, bool) {
	switch flags.AdditionalMnemonic {
	case "lock":
		return 0xF0, true
	case "repne", "repnz":
		return 0xF2, true
	case "rep", "repe", "repz":
		return 0xF3, true
	default:
		return 0, false
	}
}

// segmentOverridePrefix returns the segment-override byte for a memory
// operand's segment register, if present.
func segmentOverridePrefix(m Mem) (byte, bool) {
	if m.Segment == nil {
		return 0, false
	}
	switch m.Segment.Name {
	case "cs":
		return 0x2E, true
	case "ss":
		return 0x36, true
	case "ds":
		return 0x3E, true
	case "es":
		return 0x26, true
	case "fs":
		return 0x64, true
	case "gs":
		return 0x65, true
	default:
		return 0, false
	}
}

// sizeOverridePrefixes computes the 66H/67H override bytes for the given
// assembly target width and instruction. defaultsTo64 covers mnemonics
// whose 64-bit form needs no REX.W (e.g. PUSH/POP/CALL/JMP near).
func sizeOverridePrefixes(bits int, ins Instruction, api GenAPI, defaultsTo64 bool) []byte {
	var out []byte

	size := ins.LogicalSize()
	if api.HasFlag(FlagFixedSize) {
		size = api.ImmSize()
		switch {
		case size == SizeWord && (bits == 32 || bits == 64):
			out = append(out, 0x66)
		case size == SizeDword && bits == 16:
			out = append(out, 0x66)
		}
		return appendAddrSizeOverride(out, bits, ins)
	}

	switch {
	case bits == 16 && size == SizeDword:
		out = append(out, 0x66)
	case bits == 32 && size == SizeWord:
		out = append(out, 0x66)
	case bits == 64 && size == SizeWord:
		out = append(out, 0x66)
	case bits == 64 && size == SizeQword && !defaultsTo64 && !api.HasFlag(FlagREX):
		// Open question (spec.md §9): the original emits 66H here, which is
		// almost certainly wrong for real instructions — REX.W should be
		// used instead. We follow the corrected behaviour: no 66H, and the
		// caller is expected to have set FlagREX for true qword operations.
	}

	return appendAddrSizeOverride(out, bits, ins)
}

func appendAddrSizeOverride(out []byte, bits int, ins Instruction) []byte {
	for _, op := range ins.Operands {
		m, ok := op.(Mem)
		if !ok {
			continue
		}
		defaultAddr := SizeDword
		if bits == 64 {
			defaultAddr = SizeQword
		} else if bits == 16 {
			defaultAddr = SizeWord
		}
		if m.AddrSize != SizeUnknown && m.AddrSize != defaultAddr {
			out = append(out, 0x67)
		}
	}
	return out
}
