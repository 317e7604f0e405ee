package x86_64

import "fmt"

// EncodeError reports an instruction that cannot be encoded (§7 error
// class 6): an operand combination the descriptor has no encoding for.
// Dispatch also returns it for a mnemonic or operand shape it has no form
// for, so it reports unsupported input as well as assembler bugs.
type EncodeError struct {
	Mnemonic string
	Line     int
	Message  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("x86_64: line %d: %s: %s", e.Line, e.Mnemonic, e.Message)
}

// Assemble is the encoder core's contract: given a descriptor and a
// validated instruction, produce the exact machine code bytes plus any
// relocations, in the order laid out by §4.5. Offsets on returned
// relocations are instruction-local; the caller (section.go) shifts them
// by the section's running byte count before aggregating.
func Assemble(api GenAPI, ins Instruction) ([]byte, []Relocation, error) {
	var out []byte
	var relocs []Relocation

	// 1. Legacy additional prefix (LOCK/REP/REPNE).
	if b, ok := legacyAdditionalPrefix(ins.Flags); ok {
		out = append(out, b)
	}

	usesVEX := api.HasFlag(FlagVEX) && !ins.Flags.ForceEVEX
	usesEVEX := api.HasFlag(FlagEVEX) || ins.Flags.ForceEVEX

	// 3. Segment override, size overrides, mandatory legacy prefix — only
	// when neither VEX nor EVEX is in play (they embed their own
	// mandatory-prefix bits).
	if !usesVEX && !usesEVEX {
		for _, op := range ins.Operands {
			if m, ok := op.(Mem); ok {
				if b, ok := segmentOverridePrefix(m); ok && api.HasFlag(FlagCanSeg) {
					out = append(out, b)
				}
			}
		}
		out = append(out, sizeOverridePrefixes(ins.Bits, ins, api, defaultsTo64(ins.Mnemonic))...)
		if api.Prefix() != 0 {
			out = append(out, api.Prefix())
		}
	}

	// 4. REX, unless suppressed by STRICT_PFX or masked by VEX/EVEX.
	if !usesVEX && !usesEVEX {
		if rexNeeded(api, ins) || api.HasFlag(FlagREX) {
			if !api.HasFlag(FlagStrictPfx) || api.HasFlag(FlagREX) {
				out = append(out, buildREX(api, ins))
			}
		}
	}

	// 5. VEX or EVEX.
	switch {
	case usesEVEX:
		out = append(out, buildEVEX(api, ins)...)
	case usesVEX:
		out = append(out, buildVEX(api, ins)...)
	}

	// 6. Opcode bytes.
	out = append(out, api.opcode.Collect()...)

	// 7. ModR/M (+SIB +displacement), if used.
	if api.HasFlag(FlagUseModRM) {
		addr := buildModRM(api, ins)
		base := len(out)
		out = append(out, addr.bytes...)

		if rm, _, _ := api.OperandSites(ins); rm != nil {
			if m, ok := rm.(Mem); ok && m.Symbol != nil {
				relocs = append(relocs, Relocation{
					Symbol:   m.Symbol.Name,
					Offset:   base + addr.relocAtByte,
					Addend:   m.Symbol.Addend,
					Type:     symbolRefRelocType(*m.Symbol, RelocPC32),
					Category: relocCategoryFor(ins.Mnemonic),
				})
			}
		}
	}

	// 8/9. Immediate or literal constant trailer.
	switch {
	case api.HasFlag(FlagImmAtIndex):
		bs, r, err := encodeImmAtIndex(api, ins, len(out))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, bs...)
		if r != nil {
			relocs = append(relocs, *r)
		}
	case api.HasFlag(FlagOneByteConst):
		out = append(out, api.OneByteConst())
	case api.HasFlag(FlagTwoByteConst):
		lo, hi := api.TwoByteConst()
		out = append(out, lo, hi)
	}

	if len(out) > 15 {
		return nil, nil, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "encoded length exceeds 15 bytes"}
	}

	// 10. PC-relative addend fix-up.
	fixupPCRelative(relocs, len(out))

	return out, relocs, nil
}

func symbolRefRelocType(s SymbolRef, fallback RelocType) RelocType {
	if s.RelocType != RelocNone {
		return s.RelocType
	}
	return fallback
}

func relocCategoryFor(mnemonic string) RelocCategory {
	switch mnemonic {
	case "lea":
		return RelocLea
	case "jmp", "call":
		return RelocJump
	}
	if len(mnemonic) > 1 && mnemonic[0] == 'j' {
		return RelocJump // conditional jumps: je, jne, jl, jg, ...
	}
	return RelocAbsolute
}

func encodeImmAtIndex(api GenAPI, ins Instruction, offset int) ([]byte, *Relocation, error) {
	op := ins.Operand(api.ImmIndex())
	size := api.ImmSize().Bytes()
	bigEndian := api.HasFlag(FlagImmBE)

	switch o := op.(type) {
	case Number:
		return o.Bytes(size, bigEndian), nil, nil
	case Register:
		// Register-valued immediate, used by VEX is4/is5 encodings: the
		// register's extension bit occupies bit 7, its low 3 bits occupy
		// bits 4-6 of the constant's top nibble.
		b := (boolByte(o.NeedsExtensionBit()) << 7) | (o.ToByte() << 4)
		buf := make([]byte, size)
		buf[0] = b
		return buf, nil, nil
	case SymbolRef:
		declSize := o.Size
		if declSize == SizeUnknown {
			declSize = SizeDword
		}
		category := relocCategoryFor(ins.Mnemonic)
		fallback := RelocAbs32
		if category == RelocJump {
			fallback = RelocPC32
		}
		buf := make([]byte, declSize.Bytes())
		r := &Relocation{
			Symbol:   o.Name,
			Offset:   offset,
			Addend:   o.Addend,
			Type:     symbolRefRelocType(o, fallback),
			Category: category,
		}
		return buf, r, nil
	case StringOperand:
		bs := []byte(o.Value)
		if size == 0 {
			return bs, nil, nil
		}
		buf := make([]byte, size)
		copy(buf, bs)
		return buf, nil, nil
	default:
		return nil, nil, &EncodeError{Mnemonic: ins.Mnemonic, Line: ins.Line, Message: "no operand at immediate index"}
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// defaultsTo64 reports whether a mnemonic's 64-bit form is implicit
// (CALL/JMP near, PUSH/POP of a GPR, and similar) and therefore needs
// neither REX.W nor the narrowing 66H the open question in §9 warns about.
func defaultsTo64(mnemonic string) bool {
	switch mnemonic {
	case "push", "pop", "call", "jmp", "ret":
		return true
	default:
		return false
	}
}
