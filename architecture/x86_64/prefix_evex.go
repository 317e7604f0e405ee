package x86_64

// buildEVEX emits the 4-byte EVEX prefix (62 P0 P1 P2). W is taken from the
// descriptor's prefix byte as is; a broadcast does not change it, whatever
// the element size.
func buildEVEX(api GenAPI, ins Instruction) []byte {
	w, mm, pp := unpackVexPrefix(api.Prefix())

	rm, reg, vvvv := api.OperandSites(ins)

	rExt := extBit(reg)
	xExt := memIndexExtBit(rm)
	bExt := extBit(rm) || memBaseExtBit(rm)
	rPrimeExt := furtherExtBit(reg)

	rBar := invertBit(rExt)
	xBar := invertBit(xExt)
	bBar := invertBit(bExt)
	rPrimeBar := invertBit(rPrimeExt)

	p0 := (rBar << 7) | (xBar << 6) | (bBar << 5) | (rPrimeBar << 4) | (mm & 0x3)

	var wBit byte
	if w {
		wBit = 1
	}
	vvvvField := vexVVVV(vvvv)
	p1 := (wBit << 7) | (vvvvField << 3) | (1 << 2) | pp

	flags := ins.Flags

	var z byte
	if flags.Zeroing {
		z = 1
	}

	llBits := evexLL(api.VexLength())
	var b byte
	if flags.SAE || flags.Broadcast {
		b = 1
	}
	if flags.RoundSet {
		llBits = byte(flags.RoundMode & 0x3)
	}

	vPrimeBar := invertBit(furtherExtBit(vvvv))
	aaa := byte(flags.MaskReg & 0x7)

	p2 := (z << 7) | (llBits << 5) | (b << 4) | (vPrimeBar << 3) | aaa

	return []byte{0x62, p0, p1, p2}
}

func furtherExtBit(op Operand) bool {
	r, ok := op.(Register)
	return ok && r.NeedsFurtherExtensionBit()
}

// evexLL maps a VexLength to EVEX's 2-bit L'L field: 128->00, 256->01,
// 512->10. Overwritten by an explicit rounding mode when one is present.
func evexLL(l VexLength) byte {
	switch l {
	case VexLen128:
		return 0b00
	case VexLen256:
		return 0b01
	case VexLen512:
		return 0b10
	default:
		return 0b10
	}
}
