package kasm

import "github.com/keurnel/x64enc/v0/kasm/profile"

// NewX8664Profile returns the canonical x86_64 ArchitectureProfile shared
// by the lexer and the CLI. It delegates to the profile package so both
// kasm.NewX8664Profile() and profile.NewX8664Profile() yield
// interchangeable values.
func NewX8664Profile() profile.ArchitectureProfile {
	return profile.NewX8664Profile()
}
