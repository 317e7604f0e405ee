package kasm

import (
	"strconv"
	"strings"

	"github.com/keurnel/x64enc/architecture/x86_64"
)

// BridgeError reports a single AST node the bridge could not translate into
// an encoder-ready x86_64.Instruction. It is returned alongside whatever
// partial output the bridge managed to build, mirroring CodegenError's
// accumulate-and-continue shape.
type BridgeError struct {
	Message string
	Line    int
	Column  int
}

func (e BridgeError) String() string {
	return CodegenError{Message: e.Message, Line: e.Line, Column: e.Column}.String()
}

// Lower walks a validated *Program and produces the []x86_64.Label input
// x86_64.Compile expects. It replaces the teacher's toy register-number
// encoder (codegen_encode.go, now removed) with real calls into the
// GenAPI-based encoder core: this function's only job is shape translation,
// never byte emission.
//
// `section <name>` is recognised as a pseudo-instruction even though the
// parser has no dedicated SectionStmt production for it yet — it switches
// the section every subsequent label is assigned to. Instructions that
// appear before any label are collected under a synthetic "_start" label in
// the current section, so a source file that opens straight into code
// without a leading label still assembles.
func Lower(program *Program) ([]x86_64.Label, []BridgeError) {
	var errs []BridgeError
	addErr := func(msg string, line, col int) {
		errs = append(errs, BridgeError{Message: msg, Line: line, Column: col})
	}

	currentSection := ".text"
	var labels []x86_64.Label
	var cur *x86_64.Label

	ensureLabel := func(name string, line, col int) {
		if cur != nil && cur.Name == name && cur.Section == currentSection {
			return
		}
		labels = append(labels, x86_64.Label{
			Name:    name,
			Section: currentSection,
			IsEntry: name == "_start" || name == "main",
		})
		cur = &labels[len(labels)-1]
	}

	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *SectionStmt:
			currentSection = normalizeSectionName(s.Name)
			cur = nil

		case *LabelStmt:
			ensureLabel(s.Name, s.Line, s.Column)

		case *NamespaceStmt, *UseStmt, *DirectiveStmt:
			// Front-end-only constructs: they shape pre-processing and
			// symbol resolution upstream of the bridge and carry no bytes
			// of their own.

		case *InstructionStmt:
			if s.Mnemonic == "section" {
				if len(s.Operands) == 0 {
					addErr("section directive requires a name", s.Line, s.Column)
					continue
				}
				currentSection = normalizeSectionName(operandName(s.Operands[0]))
				cur = nil
				continue
			}

			ins, err := lowerInstruction(s)
			if err != "" {
				addErr(err, s.Line, s.Column)
				continue
			}

			if cur == nil {
				ensureLabel("_start", s.Line, s.Column)
			}
			cur.Instructions = append(cur.Instructions, ins)

		default:
			addErr("unrecognised statement kind in code generation", stmt.StatementLine(), stmt.StatementColumn())
		}
	}

	return labels, errs
}

// normalizeSectionName accepts both "text" and ".text" spellings — the
// lexer does not special-case leading dots, so an IdentifierOperand read
// from `section .text` carries the dot already, while one read from
// `section text` does not.
func normalizeSectionName(name string) string {
	if strings.HasPrefix(name, ".") {
		return name
	}
	return "." + name
}

// operandName extracts the literal name out of an IdentifierOperand, the
// only operand kind a `section` directive's argument takes.
func operandName(op Operand) string {
	if id, ok := op.(*IdentifierOperand); ok {
		return id.Name
	}
	return ""
}

// lowerInstruction converts one InstructionStmt into an x86_64.Instruction.
// It returns a non-empty error string, rather than an error value, so the
// caller can fold it into BridgeError with the statement's own position.
func lowerInstruction(s *InstructionStmt) (x86_64.Instruction, string) {
	operands := make([]x86_64.Operand, 0, len(s.Operands))
	for _, op := range s.Operands {
		lowered, err := lowerOperand(op)
		if err != "" {
			return x86_64.Instruction{}, err
		}
		operands = append(operands, lowered)
	}

	return x86_64.Instruction{
		Mnemonic: strings.ToLower(s.Mnemonic),
		Operands: operands,
		Line:     s.Line,
		Bits:     64,
	}, ""
}

func lowerOperand(op Operand) (x86_64.Operand, string) {
	switch o := op.(type) {
	case *RegisterOperand:
		reg, ok := x86_64.LookupRegister(o.Name)
		if !ok {
			return nil, "unknown register '" + o.Name + "'"
		}
		return reg, ""

	case *ImmediateOperand:
		n, err := parseImmediate(o.Value)
		if err != "" {
			return nil, err
		}
		return n, ""

	case *IdentifierOperand:
		return x86_64.SymbolRef{Name: o.Name}, ""

	case *StringOperand:
		return x86_64.StringOperand{Value: o.Value}, ""

	case *MemoryOperand:
		return lowerMemoryOperand(o)

	default:
		return nil, "unsupported operand kind in code generation"
	}
}

// parseImmediate accepts decimal and 0x-prefixed hexadecimal literals, the
// two forms the lexer's readNumber produces.
func parseImmediate(text string) (x86_64.Number, string) {
	base := 10
	literal := text
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base = 16
		literal = text[2:]
	}
	v, err := strconv.ParseInt(literal, base, 64)
	if err != nil {
		return x86_64.Number{}, "invalid immediate '" + text + "'"
	}
	return x86_64.Number{Value: v, RealSize: sizeForValue(v)}, ""
}

func sizeForValue(v int64) x86_64.Size {
	switch {
	case v >= -128 && v <= 255:
		return x86_64.SizeByte
	case v >= -32768 && v <= 65535:
		return x86_64.SizeWord
	case v >= -2147483648 && v <= 4294967295:
		return x86_64.SizeDword
	default:
		return x86_64.SizeQword
	}
}

// lowerMemoryOperand walks a bracketed operand's component tokens and
// assembles an x86_64.Mem. Supported shapes: [reg], [reg+disp], [reg+reg],
// [reg+reg*scale], [reg+reg*scale+disp], [rip+symbol], [symbol].
func lowerMemoryOperand(o *MemoryOperand) (x86_64.Operand, string) {
	mem := x86_64.Mem{AddrSize: x86_64.SizeQword}

	sign := int64(1)
	pendingScale := byte(0)
	var pendingIndex *x86_64.Register

	flushIndex := func() {
		if pendingIndex != nil {
			idx := *pendingIndex
			mem.Index = &idx
			if pendingScale == 0 {
				pendingScale = 1
			}
			mem.Scale = pendingScale
			pendingIndex = nil
			pendingScale = 0
		}
	}

	sawStar := false
	for i := 0; i < len(o.Components); i++ {
		tok := o.Components[i].Token

		switch tok.Type {
		case TokenRegister:
			lower := strings.ToLower(tok.Literal)
			if lower == "rip" {
				mem.RIPRelative = true
				continue
			}
			reg, ok := x86_64.LookupRegister(tok.Literal)
			if !ok {
				return nil, "unknown register '" + tok.Literal + "' in memory operand"
			}
			if mem.Base == nil && pendingIndex == nil {
				r := reg
				mem.Base = &r
				continue
			}
			flushIndex()
			r := reg
			pendingIndex = &r

		case TokenImmediate:
			n, err := parseImmediate(tok.Literal)
			if err != "" {
				return nil, err
			}
			if pendingIndex != nil && pendingScale == 0 && sawStar {
				// A bare immediate directly after a register inside a
				// "*" expression is the scale factor.
				pendingScale = byte(n.Value)
				sawStar = false
				continue
			}
			mem.Disp += int32(sign * n.Value)
			mem.HasDisp = true

		case TokenIdentifier:
			switch tok.Literal {
			case "+":
				sign = 1
			case "-":
				sign = -1
			case "*":
				// the next immediate is the scale; see above
				sawStar = true
			default:
				flushIndex()
				sym := tok.Literal
				mem.Symbol = &x86_64.SymbolRef{Name: sym}
			}

		default:
			return nil, "unsupported token in memory operand"
		}
	}

	flushIndex()
	return mem, ""
}
