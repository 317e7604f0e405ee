package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/keurnel/x64enc/architecture/x86_64"
)

const (
	ehdr64Size = 64
	shdr64Size = 64
	sym64Size  = 24
	rela64Size = 24
)

// Write64 renders a compiled Program as a relocatable ELF64 object file
// (ET_REL, EM_X86_64), per spec.md §6: ELF header, section contents,
// section headers, with .rela.<section> relocation sections wherever the
// program recorded relocations against that section. fileName becomes the
// STT_FILE symbol's name (conventionally the source file base name).
func Write64(p *x86_64.Program, fileName string) ([]byte, error) {
	shstrtab := newStringTable()
	strtab := newStringTable()

	type secHeader struct {
		nameOff   uint32
		shType    uint32
		flags     uint64
		offset    uint64
		size      uint64
		link      uint32
		info      uint32
		addralign uint64
		entsize   uint64
		data      []byte
	}

	var headers []secHeader
	headers = append(headers, secHeader{}) // SHT_NULL

	relocsBySection := make(map[int][]x86_64.Relocation)
	for _, r := range p.Relocations {
		relocsBySection[r.SectionIdx] = append(relocsBySection[r.SectionIdx], r)
	}

	for i, sec := range p.Sections {
		flags := uint64(shfAlloc)
		shType := uint32(shtProgbits)
		if sec.Name == ".text" {
			flags |= shfExecinstr
		} else if sec.Name != ".rodata" {
			flags |= shfWrite
		}
		size := uint64(len(sec.Data))
		data := sec.Data
		if sec.IsBSS {
			shType = shtNobits
			size = uint64(sec.Size)
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
		_ = i
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
			Info  byte
			Other byte
			Shndx uint16
			Value uint64
			Size  uint64
		}{nameOff, stInfo(sym.bind, sym.typ), 0, sym.shndx, sym.value, sym.size})
	}

	symtabIdx := len(headers)
	headers = append(headers, secHeader{
		nameOff:   shstrtab.add(".symtab"),
		shType:    shtSymtab,
		addralign: 8,
		entsize:   sym64Size,
		data:      symtabBuf.Bytes(),
	})

	var relaSections []secHeader
	for secIdx := range p.Sections {
		relocs, ok := relocsBySection[secIdx]
		if !ok {
			continue
		}
		var relaBuf bytes.Buffer
		for _, r := range relocs {
			symIdx, ok := plan.index[r.Symbol]
			if !ok {
				return nil, fmt.Errorf("elf: relocation references unknown symbol %q", r.Symbol)
			}
			info := (uint64(symIdx) << 32) | uint64(relocType64(r.Type))
			binary.Write(&relaBuf, binary.LittleEndian, struct {
				Offset uint64
				Info   uint64
				Addend int64
			}{uint64(r.Offset), info, r.Addend})
		}
		relaSections = append(relaSections, secHeader{
			nameOff:   shstrtab.add(relocSectionName(true, p.Sections[secIdx].Name)),
			shType:    shtRela,
			link:      uint32(symtabIdx),
			info:      uint32(secIdx + 1),
			addralign: 8,
			entsize:   rela64Size,
			data:      relaBuf.Bytes(),
		})
	}
	headers = append(headers, relaSections...)

	strtabIdx := len(headers)
	headers = append(headers, secHeader{
		nameOff: shstrtab.add(".strtab"),
		shType:  shtStrtab,
		data:    strtab.buf,
	})
	headers[symtabIdx].link = uint32(strtabIdx)
	headers[symtabIdx].info = uint32(plan.localEnd)

	shstrtabIdx := len(headers)
	headers = append(headers, secHeader{
		nameOff: shstrtab.add(".shstrtab"),
		shType:  shtStrtab,
	})
	headers[shstrtabIdx].data = shstrtab.buf
	headers[shstrtabIdx].size = uint64(len(shstrtab.buf))

	// Now that shstrtab is frozen, lay out file offsets for every section
	// with real content, starting right after the ELF header.
	offset := uint64(ehdr64Size)
	for i := range headers {
		if i == 0 {
			continue
		}
		h := &headers[i]
		if h.shType == shtNobits {
			continue
		}
		if h.size == 0 {
			h.size = uint64(len(h.data))
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

	ehdr := make([]byte, ehdr64Size)
	copy(ehdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	ehdr[4] = elfClass64
	ehdr[5] = elfData2LSB
	ehdr[6] = evCurrent
	ehdr[7] = elfOSABISysv
	binary.LittleEndian.PutUint16(ehdr[16:18], etRel)
	binary.LittleEndian.PutUint16(ehdr[18:20], emX8664)
	binary.LittleEndian.PutUint32(ehdr[20:24], evCurrent)
	binary.LittleEndian.PutUint64(ehdr[40:48], shoff)
	binary.LittleEndian.PutUint16(ehdr[52:54], ehdr64Size)
	binary.LittleEndian.PutUint16(ehdr[58:60], shdr64Size)
	binary.LittleEndian.PutUint16(ehdr[60:62], uint16(len(headers)))
	binary.LittleEndian.PutUint16(ehdr[62:64], uint16(shstrtabIdx))

	var final bytes.Buffer
	final.Write(ehdr)
	final.Write(out.Bytes())

	for _, h := range headers {
		var shdr [shdr64Size]byte
		binary.LittleEndian.PutUint32(shdr[0:4], h.nameOff)
		binary.LittleEndian.PutUint32(shdr[4:8], h.shType)
		binary.LittleEndian.PutUint64(shdr[8:16], h.flags)
		binary.LittleEndian.PutUint64(shdr[24:32], h.offset)
		binary.LittleEndian.PutUint64(shdr[32:40], h.size)
		binary.LittleEndian.PutUint32(shdr[40:44], h.link)
		binary.LittleEndian.PutUint32(shdr[44:48], h.info)
		binary.LittleEndian.PutUint64(shdr[48:56], h.addralign)
		binary.LittleEndian.PutUint64(shdr[56:64], h.entsize)
		final.Write(shdr[:])
	}

	return final.Bytes(), nil
}

func relocType64(t x86_64.RelocType) uint32 {
	switch t {
	case x86_64.RelocAbs64:
		return rX8664_64
	case x86_64.RelocAbs32:
		return rX8664_32
	case x86_64.RelocPC32:
		return rX8664PC32
	default:
		return rX8664None
	}
}
