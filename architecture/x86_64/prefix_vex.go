package x86_64

// vexVVVV returns the 4-bit (inverted) VEX.vvvv encoding for the operand
// mapped to the VEX.vvvv site, or 0b1111 ("no second source") if absent.
func vexVVVV(op Operand) byte {
	r, ok := op.(Register)
	if !ok {
		return 0x0F
	}
	return (^r.Encoding) & 0x0F
}

// buildVEX emits the 2- or 3-byte VEX prefix for the given descriptor and
// instruction, preferring the 2-byte form whenever it is legal (§9: using
// the 3-byte form when the 2-byte form would do is an observable bug).
func buildVEX(api GenAPI, ins Instruction) []byte {
	w, mmmmm, pp := unpackVexPrefix(api.Prefix())

	rm, reg, vvvv := api.OperandSites(ins)

	rExt := extBit(reg)
	xExt := memIndexExtBit(rm)
	bExt := extBit(rm) || memBaseExtBit(rm)

	l := byte(0)
	if api.VexLength() == VexLen256 {
		l = 1
	}

	vvvvField := vexVVVV(vvvv)

	canUse2Byte := !xExt && !bExt && !w && mmmmm == 1

	if canUse2Byte {
		rBar := invertBit(rExt)
		b1 := (rBar << 7) | (vvvvField << 3) | (l << 2) | pp
		return []byte{0xC5, b1}
	}

	rBar := invertBit(rExt)
	xBar := invertBit(xExt)
	bBar := invertBit(bExt)
	b1 := (rBar << 7) | (xBar << 6) | (bBar << 5) | (mmmmm & 0x1F)

	var wBit byte
	if w {
		wBit = 1
	}
	b2 := (wBit << 7) | (vvvvField << 3) | (l << 2) | pp

	return []byte{0xC4, b1, b2}
}

func extBit(op Operand) bool {
	r, ok := op.(Register)
	return ok && r.NeedsExtensionBit()
}

func memBaseExtBit(op Operand) bool {
	m, ok := op.(Mem)
	return ok && m.Base != nil && m.Base.NeedsExtensionBit()
}

func memIndexExtBit(op Operand) bool {
	m, ok := op.(Mem)
	return ok && m.Index != nil && m.Index.NeedsExtensionBit()
}

func invertBit(b bool) byte {
	if b {
		return 0
	}
	return 1
}
