package x86_64

// RawBinary resolves every relocation against the program's own symbol
// table and concatenates every non-BSS section's bytes in layout order,
// with no container around them — the flat `bin` output target named in
// spec.md §6. `.bss` reservations contribute no bytes; a loader is
// expected to zero-fill them separately.
func RawBinary(p *Program) ([]byte, error) {
	if err := p.ResolveIntraSection(); err != nil {
		return nil, err
	}

	var out []byte
	for _, sec := range p.Sections {
		if sec.IsBSS {
			continue
		}
		out = append(out, sec.Data...)
	}
	return out, nil
}
