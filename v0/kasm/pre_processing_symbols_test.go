package kasm_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/keurnel/x64enc/v0/kasm"
)

// --- PreProcessingCreateSymbolTable: %define ---

func TestPreProcessingCreateSymbolTable_SingleDefine(t *testing.T) {
	source := `%define DEBUG`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if !symbols["DEBUG"] {
		t.Error("expected 'DEBUG' to be defined")
	}
	if len(symbols) != 1 {
		t.Errorf("expected 1 symbol, got %d", len(symbols))
	}
}

func TestPreProcessingCreateSymbolTable_MultipleDefines(t *testing.T) {
	source := `%define DEBUG
%define VERBOSE
%define TRACE`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if len(symbols) != 3 {
		t.Fatalf("expected 3 symbols, got %d", len(symbols))
	}

	for _, name := range []string{"DEBUG", "VERBOSE", "TRACE"} {
		if !symbols[name] {
			t.Errorf("expected '%s' to be defined", name)
		}
	}
}

func TestPreProcessingCreateSymbolTable_NoDefines(t *testing.T) {
	source := `mov rax, 1`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if len(symbols) != 0 {
		t.Errorf("expected 0 symbols, got %d", len(symbols))
	}
}

func TestPreProcessingCreateSymbolTable_EmptySource(t *testing.T) {
	symbols := kasm.PreProcessingCreateSymbolTable("")

	if len(symbols) != 0 {
		t.Errorf("expected 0 symbols, got %d", len(symbols))
	}
}

func TestPreProcessingCreateSymbolTable_DuplicateDefine_Panics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for duplicate define")
		}
		msg, ok := r.(string)
		if !ok {
			t.Fatalf("expected string panic, got %T", r)
		}
		if !containsSubstring(msg, "Duplicate %define") {
			t.Errorf("unexpected panic message: %s", msg)
		}
	}()

	source := `%define DEBUG
%define DEBUG`
	kasm.PreProcessingCreateSymbolTable(source)
}

func TestPreProcessingCreateSymbolTable_DuplicateDefine_ReportsLineNumbers(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for duplicate define")
		}
		msg, ok := r.(string)
		if !ok {
			t.Fatalf("expected string panic, got %T", r)
		}
		if !containsSubstring(msg, "at line 3") {
			t.Errorf("expected duplicate at line 3, got: %s", msg)
		}
		if !containsSubstring(msg, "first defined at line 1") {
			t.Errorf("expected first defined at line 1, got: %s", msg)
		}
	}()

	source := `%define DEBUG
; comment
%define DEBUG`
	kasm.PreProcessingCreateSymbolTable(source)
}

// --- PreProcessingCreateSymbolTable: whitespace handling ---

func TestPreProcessingCreateSymbolTable_LeadingWhitespace(t *testing.T) {
	source := `   %define DEBUG`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if !symbols["DEBUG"] {
		t.Error("expected 'DEBUG' to be defined despite leading whitespace")
	}
}

func TestPreProcessingCreateSymbolTable_TabIndent(t *testing.T) {
	source := "\t%define DEBUG"
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if !symbols["DEBUG"] {
		t.Error("expected 'DEBUG' to be defined despite tab indent")
	}
}

// --- PreProcessingCreateSymbolTable: ignores non-define lines ---

func TestPreProcessingCreateSymbolTable_IgnoresComments(t *testing.T) {
	source := `; %define NOT_A_SYMBOL
%define REAL_SYMBOL`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if len(symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(symbols))
	}
	if !symbols["REAL_SYMBOL"] {
		t.Error("expected 'REAL_SYMBOL' to be defined")
	}
	if symbols["NOT_A_SYMBOL"] {
		t.Error("expected 'NOT_A_SYMBOL' to NOT be defined")
	}
}

func TestPreProcessingCreateSymbolTable_IgnoresInlineMacroDirectives(t *testing.T) {
	source := `%macro my_macro 1
    mov rax, %1
%endmacro
%define ENABLED`
	symbols := kasm.PreProcessingCreateSymbolTable(source)

	if !symbols["ENABLED"] {
		t.Error("expected 'ENABLED' to be defined")
	}
	// macro directive is not a define directive
	if symbols["my_macro"] {
		t.Error("expected 'my_macro' to NOT be in symbol table (not via define)")
	}
}

func BenchmarkPreProcessingCreateSymbolTable_NoDefines(b *testing.B) {
	source := "mov rax, 1\nmov rdi, 0\nsyscall\n"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kasm.PreProcessingCreateSymbolTable(source)
	}
}

func BenchmarkPreProcessingCreateSymbolTable_SingleDefine(b *testing.B) {
	source := "%define DEBUG\nmov rax, 1\n"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kasm.PreProcessingCreateSymbolTable(source)
	}
}

func BenchmarkPreProcessingCreateSymbolTable_ManyDefines(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(fmt.Sprintf("%%define SYM_%d\n", i))
	}
	source := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kasm.PreProcessingCreateSymbolTable(source)
	}
}

func BenchmarkPreProcessingCreateSymbolTable_DefinesAtEnd(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString(fmt.Sprintf("mov r%d, %d\n", i%16, i))
	}
	for i := 0; i < 10; i++ {
		sb.WriteString(fmt.Sprintf("%%define SYM_%d\n", i))
	}
	source := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kasm.PreProcessingCreateSymbolTable(source)
	}
}

func BenchmarkPreProcessingCreateSymbolTable_LargeSource_NoDefines(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteString(fmt.Sprintf("mov r%d, %d\n", i%16, i))
	}
	source := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kasm.PreProcessingCreateSymbolTable(source)
	}
}
