package x86_64

// RelocCategory distinguishes the three reasons a relocation was recorded.
// For a symbol used as an immediate, the encoder uses it to pick the r_type
// when the reference declares none; the ELF writers do not read it.
type RelocCategory int

const (
	RelocJump RelocCategory = iota
	RelocLea
	RelocAbsolute
)

// Visibility mirrors ELF symbol binding.
type Visibility int

const (
	VisibilityLocal Visibility = iota
	VisibilityGlobal
	VisibilityWeak
)

// SymbolType mirrors the ELF STT_* symbol type field.
type SymbolType int

const (
	SymTypeNoType SymbolType = iota
	SymTypeFunc
	SymTypeObject
	SymTypeSection
	SymTypeFile
)

// Relocation records a symbolic placeholder emitted into a section buffer.
// Offset points at the first byte of the placeholder field within the
// section, not within the instruction — the label/section compiler
// (section.go) shifts the encoder's instruction-local offset by the
// running section offset before appending.
type Relocation struct {
	Symbol    string
	Offset    int
	Addend    int64
	Type      RelocType
	Category  RelocCategory
	SectionIdx int
}

// Symbol is created when a label or variable is compiled. Offset is
// section-relative, captured at the first byte of emission; Size is
// patched in once the label's full instruction run has been emitted.
type Symbol struct {
	Name       string
	SectionIdx int
	Offset     int
	Size       int
	Visibility Visibility
	Type       SymbolType
}

// fixupPCRelative applies the PC-after-instruction correction described in
// §4.5 step 10. The CPU computes a RIP-relative target as
// `disp32 + address_of_next_instruction`, while the linker resolves a
// PC-relative relocation as `S + A - P` (symbol value plus addend, minus
// the address of the relocated field itself). Equating the two pins down
// the stored addend: `A = offset - total_len` (plus whatever addend the
// front end already declared). For a 4-byte field that ends the
// instruction this reduces to the familiar `-4` correction; it is not in
// general the same thing, which is why this uses each
// relocation's own Offset rather than assuming the field is instruction-
// final.
func fixupPCRelative(relocs []Relocation, totalLen int) {
	for i := range relocs {
		if relocs[i].Type == RelocPC32 {
			relocs[i].Addend += int64(relocs[i].Offset - totalLen)
		}
	}
}
