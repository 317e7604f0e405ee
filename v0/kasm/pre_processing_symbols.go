package kasm

import (
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regex for conditional directives: %ifdef, %ifndef, %else, %endif.
var conditionalDirectiveRegex = regexp.MustCompile(`(?m)^\s*%(ifdef|ifndef|else|endif)\s*(\w*)\s*$`)

// Pre-compiled regex for %define directives used for stripping.
var defineStripRegex = regexp.MustCompile(`(?m)^\s*%define\s+\w+\s*\n?`)

// Pre-compiled regex for %define directives used for symbol-table extraction.
var defineDirectiveRegex = regexp.MustCompile(`(?m)^\s*%define\s+(\w+)\s*$`)

// PreProcessingCreateSymbolTable scans the source code for %define directives
// and builds a symbol table mapping each defined symbol name to true. It
// returns the symbol table for use in conditional assembly processing.
//
// Only lines of the form `%define <identifier>` are collected; a %define
// line of any other shape is skipped without an error. A symbol defined
// twice is a pre-processing error.
func PreProcessingCreateSymbolTable(source string) map[string]bool {
	hasDefines := strings.Contains(source, "%define")

	var matches [][]int
	if hasDefines {
		matches = defineDirectiveRegex.FindAllStringSubmatchIndex(source, -1)
	}

	type symbolEntry struct {
		name       string
		lineNumber int
	}

	entries := make([]symbolEntry, 0, len(matches))

	for _, matchIdx := range matches {
		if len(matchIdx) < 4 {
			continue
		}

		matchStart := matchIdx[0]
		lineNumber := strings.Count(source[:matchStart], "\n") + 1
		symbolName := source[matchIdx[2]:matchIdx[3]]

		if symbolName == "" {
			panic(fmt.Sprintf("pre-processing error: Empty symbol name in %%define at line %d", lineNumber))
		}

		entries = append(entries, symbolEntry{
			name:       symbolName,
			lineNumber: lineNumber,
		})
	}

	seen := make(map[string]int, len(entries))
	symbolTable := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if firstLine, exists := seen[entry.name]; exists {
			panic(fmt.Sprintf("pre-processing error: Duplicate %%define for symbol '%s' at line %d (first defined at line %d)",
				entry.name, entry.lineNumber, firstLine))
		}
		seen[entry.name] = entry.lineNumber
		symbolTable[entry.name] = true
	}

	return symbolTable
}
