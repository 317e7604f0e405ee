package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/keurnel/x64enc/architecture/x86_64"
)

const (
	ehdr32Size = 52
	shdr32Size = 40
	sym32Size  = 16
	rel32Size  = 8
)

// Write32 renders a compiled Program as a relocatable ELF32 object file
// (ET_REL, EM_386), mirroring Write64 with 32-bit-sized structures and
// REL (no explicit addend) relocation records, per spec.md §6.
func Write32(p *x86_64.Program, fileName string) ([]byte, error) {
	if err := p.ResolveIntraSection(); err != nil {
		return nil, err
	}

	shstrtab := newStringTable()
	strtab := newStringTable()

	type secHeader struct {
		nameOff   uint32
		shType    uint32
		flags     uint32
		offset    uint32
		size      uint32
		link      uint32
		info      uint32
		addralign uint32
		entsize   uint32
		data      []byte
	}

	var headers []secHeader
	headers = append(headers, secHeader{})

	relocsBySection := make(map[int][]x86_64.Relocation)
	for _, r := range p.Relocations {
		relocsBySection[r.SectionIdx] = append(relocsBySection[r.SectionIdx], r)
	}

	for _, sec := range p.Sections {
		flags := uint32(shfAlloc)
		shType := uint32(shtProgbits)
		if sec.Name == ".text" {
			flags |= shfExecinstr
		} else if sec.Name != ".rodata" {
			flags |= shfWrite
		}
		size := uint32(len(sec.Data))
		data := sec.Data
		if sec.IsBSS {
			shType = shtNobits
			size = uint32(sec.Size)
			data = nil
		}
		headers = append(headers, secHeader{
			nameOff:   shstrtab.add(sec.Name),
			shType:    shType,
			flags:     flags,
			size:      size,
			addralign: 16,
			data:      data,
		})
	}

	plan := buildSymbolPlan(p, fileName)

	var symtabBuf bytes.Buffer
	for _, sym := range plan.symbols {
		nameOff := uint32(0)
		if sym.name != "" {
			nameOff = strtab.add(sym.name)
		}
		binary.Write(&symtabBuf, binary.LittleEndian, struct {
			Name  uint32
			Value uint32
			Size  uint32
			Info  byte
			Other byte
			Shndx uint16
		}{nameOff, uint32(sym.value), uint32(sym.size), stInfo(sym.bind, sym.typ), 0, sym.shndx})
	}

	symtabIdx := len(headers)
	headers = append(headers, secHeader{
		nameOff:   shstrtab.add(".symtab"),
		shType:    shtSymtab,
		addralign: 4,
		entsize:   sym32Size,
		data:      symtabBuf.Bytes(),
	})

	var relSections []secHeader
	for secIdx := range p.Sections {
		relocs, ok := relocsBySection[secIdx]
		if !ok {
			continue
		}
		var relBuf bytes.Buffer
		for _, r := range relocs {
			symIdx, ok := plan.index[r.Symbol]
			if !ok {
				return nil, fmt.Errorf("elf: relocation references unknown symbol %q", r.Symbol)
			}
			info := (uint32(symIdx) << 8) | relocType32(r.Type)
			binary.Write(&relBuf, binary.LittleEndian, struct {
				Offset uint32
				Info   uint32
			}{uint32(r.Offset), info})
		}
		relSections = append(relSections, secHeader{
			nameOff:   shstrtab.add(relocSectionName(false, p.Sections[secIdx].Name)),
			shType:    shtRel,
			link:      uint32(symtabIdx),
			info:      uint32(secIdx + 1),
			addralign: 4,
			entsize:   rel32Size,
			data:      relBuf.Bytes(),
		})
	}
	headers = append(headers, relSections...)

	strtabIdx := len(headers)
	headers = append(headers, secHeader{
		nameOff: shstrtab.add(".strtab"),
		shType:  shtStrtab,
		data:    strtab.buf,
	})
	headers[symtabIdx].link = uint32(strtabIdx)
	headers[symtabIdx].info = uint32(plan.localEnd)

	shstrtabIdx := len(headers)
	headers = append(headers, secHeader{nameOff: shstrtab.add(".shstrtab"), shType: shtStrtab})
	headers[shstrtabIdx].data = shstrtab.buf
	headers[shstrtabIdx].size = uint32(len(shstrtab.buf))

	offset := uint32(ehdr32Size)
	for i := range headers {
		if i == 0 {
			continue
		}
		h := &headers[i]
		if h.shType == shtNobits {
			continue
		}
		if h.size == 0 {
			h.size = uint32(len(h.data))
		}
		h.offset = offset
		offset += h.size
	}

	shoff := offset

	var out bytes.Buffer
	for i := range headers {
		if i == 0 || headers[i].shType == shtNobits {
			continue
		}
		out.Write(headers[i].data)
	}

	ehdr := make([]byte, ehdr32Size)
	copy(ehdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	ehdr[4] = elfClass32
	ehdr[5] = elfData2LSB
	ehdr[6] = evCurrent
	ehdr[7] = elfOSABISysv
	binary.LittleEndian.PutUint16(ehdr[16:18], etRel)
	binary.LittleEndian.PutUint16(ehdr[18:20], em386)
	binary.LittleEndian.PutUint32(ehdr[20:24], evCurrent)
	binary.LittleEndian.PutUint32(ehdr[32:36], shoff)
	binary.LittleEndian.PutUint16(ehdr[40:42], ehdr32Size)
	binary.LittleEndian.PutUint16(ehdr[46:48], shdr32Size)
	binary.LittleEndian.PutUint16(ehdr[48:50], uint16(len(headers)))
	binary.LittleEndian.PutUint16(ehdr[50:52], uint16(shstrtabIdx))

	var final bytes.Buffer
	final.Write(ehdr)
	final.Write(out.Bytes())

	for _, h := range headers {
		var shdr [shdr32Size]byte
		binary.LittleEndian.PutUint32(shdr[0:4], h.nameOff)
		binary.LittleEndian.PutUint32(shdr[4:8], h.shType)
		binary.LittleEndian.PutUint32(shdr[8:12], h.flags)
		binary.LittleEndian.PutUint32(shdr[16:20], h.offset)
		binary.LittleEndian.PutUint32(shdr[20:24], h.size)
		binary.LittleEndian.PutUint32(shdr[24:28], h.link)
		binary.LittleEndian.PutUint32(shdr[28:32], h.info)
		binary.LittleEndian.PutUint32(shdr[32:36], h.addralign)
		binary.LittleEndian.PutUint32(shdr[36:40], h.entsize)
		final.Write(shdr[:])
	}

	return final.Bytes(), nil
}

func relocType32(t x86_64.RelocType) uint32 {
	switch t {
	case x86_64.RelocAbs32, x86_64.RelocAbs64:
		return r386_32
	case x86_64.RelocPC32:
		return r386PC32
	default:
		return r386None
	}
}
