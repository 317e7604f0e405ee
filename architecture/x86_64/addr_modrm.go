package x86_64

// addrResult carries the ModR/M+SIB+displacement bytes, plus the index of a
// 4-byte disp32 placeholder when the operand is symbolic — encode.go reads
// relocAtByte to know where the relocation it builds lands in the output.
type addrResult struct {
	bytes       []byte
	relocAtByte int // index within bytes where a 4-byte placeholder starts
}

// buildModRM produces the ModR/M (and, where required, SIB and
// displacement) bytes for the instruction's rm/reg operand sites. reg/rm
// come from the operand-order mapping unless the descriptor's ModrmOverride
// forces one or both fields.
func buildModRM(api GenAPI, ins Instruction) addrResult {
	rm, reg, _ := api.OperandSites(ins)

	regField := modrmRegField(api, reg)

	switch o := rm.(type) {
	case Register:
		modrm := (0b11 << 6) | (regField << 3) | o.ToByte()
		return addrResult{bytes: []byte{modrm}}
	case Mem:
		return buildMemModRM(regField, o)
	default:
		// No rm operand at all (e.g. a single-register-only or
		// implicit-operand form): reg field still participates when an
		// override forces rm too.
		ov := api.ModrmOverride()
		rmField := byte(0)
		if ov.RmSet {
			rmField = ov.Rm
		}
		modrm := (0b11 << 6) | (regField << 3) | rmField
		return addrResult{bytes: []byte{modrm}}
	}
}

func modrmRegField(api GenAPI, reg Operand) byte {
	ov := api.ModrmOverride()
	if ov.RegSet {
		return ov.Reg & 0x7
	}
	if r, ok := reg.(Register); ok {
		return r.ToByte()
	}
	return 0
}

func buildMemModRM(regField byte, m Mem) addrResult {
	// Symbolic, non-RIP-relative references (`[sym]` without an explicit
	// base) are encoded as RIP-relative with a disp32 placeholder, the
	// conventional position-independent form.
	if m.Symbol != nil && m.Base == nil && m.Index == nil {
		modrm := byte(0b00<<6) | (regField << 3) | 0b101
		out := []byte{modrm, 0, 0, 0, 0}
		return addrResult{bytes: out, relocAtByte: 1}
	}

	if m.IndexOnly() {
		modrm := byte(0b00<<6) | (regField << 3) | rmFieldOrSIBEscape(true)
		sib := sibByte(m.Scale, indexField(m.Index), 0b101)
		out := append([]byte{modrm, sib}, disp32(m.Disp)...)
		return addrResult{bytes: out}
	}

	if m.UsesSIB() {
		mod := modFieldFor(m)
		modrm := (mod << 6) | (regField << 3) | 0b100
		var baseField byte = 0b101
		if m.Base != nil {
			baseField = m.Base.ToByte()
		}
		idxField := byte(0b100)
		if m.Index != nil {
			idxField = indexField(m.Index)
		}
		sib := sibByte(m.Scale, idxField, baseField)
		out := []byte{modrm, sib}
		out = append(out, dispBytesFor(m, mod)...)
		return addrResult{bytes: out}
	}

	// Plain [base] / [base+disp] form.
	mod := modFieldFor(m)
	rmField := byte(0b101)
	if m.Base != nil {
		rmField = m.Base.ToByte()
	}
	modrm := (mod << 6) | (regField << 3) | rmField
	out := []byte{modrm}
	out = append(out, dispBytesFor(m, mod)...)
	return addrResult{bytes: out}
}

func rmFieldOrSIBEscape(forceSIB bool) byte {
	if forceSIB {
		return 0b100
	}
	return 0
}

func indexField(r *Register) byte {
	if r == nil {
		return 0b100
	}
	return r.ToByte()
}

func sibByte(scale, index, base byte) byte {
	ss := scaleField(scale)
	return (ss << 6) | ((index & 0x7) << 3) | (base & 0x7)
}

func scaleField(scale byte) byte {
	switch scale {
	case 2:
		return 0b01
	case 4:
		return 0b10
	case 8:
		return 0b11
	default:
		return 0b00
	}
}

// modFieldFor computes ModR/M.mod for a memory operand: 00 for no
// displacement, 01 for a disp8-fitting offset, 10 otherwise. [rbp]/[r13]
// with no explicit displacement is special-cased to disp8=0, since mod=00
// with rm=101 is reserved for RIP-relative addressing (§4.4, §9).
func modFieldFor(m Mem) byte {
	if m.Base != nil && m.Base.ToByte() == 0b101 && (!m.HasDisp || m.Disp == 0) {
		return 0b01
	}
	if !m.HasDisp || m.Disp == 0 {
		return 0b00
	}
	if m.Disp >= -128 && m.Disp <= 127 {
		return 0b01
	}
	return 0b10
}

func dispBytesFor(m Mem, mod byte) []byte {
	switch mod {
	case 0b01:
		return []byte{byte(int8(m.Disp))}
	case 0b10:
		return disp32(m.Disp)
	default:
		return nil
	}
}

func disp32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}
