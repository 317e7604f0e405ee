package x86_64

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/keurnel/x64enc/architecture/x86_64"
	"github.com/keurnel/x64enc/elf"
	"github.com/keurnel/x64enc/internal/debugcontext"
	"github.com/keurnel/x64enc/internal/lineMap"
	"github.com/keurnel/x64enc/internal/render"
	"github.com/keurnel/x64enc/v0/kasm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	outputPath   string
	checkOnly    bool
	noColour     bool
)

var AssembleFileCmd = &cobra.Command{
	Use:     "assemble-file <assembly-file>",
	GroupID: "file-operations",
	Short:   "Assemble an x86_64 assembly file into a binary or object file.",
	Long:    `Assemble an x86_64 assembly file into a binary file.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAssembleFile(cmd, args); err != nil {
			cmd.PrintErrln("Error:", err)
			os.Exit(1)
		}
	},
}

func init() {
	AssembleFileCmd.Flags().StringVarP(&outputFormat, "format", "f", "elf64", "output format: bin|elf32|elf64")
	AssembleFileCmd.Flags().StringVarP(&outputPath, "output", "o", "a.out", "output file path")
	AssembleFileCmd.Flags().BoolVarP(&checkOnly, "check-only", "c", false, "validate only, do not emit output")
	AssembleFileCmd.Flags().BoolVarP(&noColour, "no-colour", "n", false, "disable coloured diagnostics")
}

// runAssembleFile orchestrates the full assembly pipeline: resolve the
// file, pre-process it, lex/parse/validate the resulting source, lower the
// AST into encoder-core input, and emit the requested output format.
func runAssembleFile(cmd *cobra.Command, args []string) error {
	log := logrus.New()

	fullPath, err := resolveFilePath(args)
	if err != nil {
		return err
	}
	log.WithField("file", fullPath).Info("assembling")

	source, err := readSourceFile(fullPath)
	if err != nil {
		return err
	}

	tracker, err := lineMap.Track(fullPath)
	if err != nil {
		return fmt.Errorf("failed to initialise line tracker: %w", err)
	}

	source = preProcess(source, tracker)

	dbg := debugcontext.NewDebugContext(fullPath)

	dbg.SetPhase("lex")
	profile := kasm.NewX8664Profile()
	tokenMap := kasm.LexerNew(source, profile).Start()
	tokens := orderedTokens(tokenMap)

	dbg.SetPhase("parse")
	program, parseErrors := kasm.ParserNew(tokens).Parse()
	for _, pe := range parseErrors {
		dbg.Error(dbg.Loc(pe.Line, pe.Column), pe.Message)
	}

	dbg.SetPhase("semantic")
	analyser := kasm.AnalyserNew(program, profile.Instructions()).WithDebugContext(dbg).WithLineMapper(tracker)
	analyser.Analyse()

	if dbg.HasErrors() {
		render.Diagnostics(os.Stderr, dbg, noColour)
		return fmt.Errorf("assembly failed with %d error(s)", len(dbg.Errors()))
	}

	dbg.SetPhase("codegen")
	labels, bridgeErrors := kasm.Lower(program)
	for _, be := range bridgeErrors {
		dbg.Error(dbg.Loc(be.Line, be.Column), be.Message)
	}
	if dbg.HasErrors() {
		render.Diagnostics(os.Stderr, dbg, noColour)
		return fmt.Errorf("code generation failed with %d error(s)", len(dbg.Errors()))
	}

	dbg.SetPhase("layout")
	compiled, err := x86_64.Compile(labels, dbg)
	if err != nil {
		return fmt.Errorf("layout failed: %w", err)
	}

	log.WithFields(logrus.Fields{
		"sections":    len(compiled.Sections),
		"relocations": len(compiled.Relocations),
		"symbols":     len(compiled.Symbols),
	}).Info("compiled")

	if checkOnly {
		log.Info("check-only: assembly is valid, no output emitted")
		return nil
	}

	dbg.SetPhase("object")
	output, err := emit(compiled, outputFormat, filepath.Base(fullPath))
	if err != nil {
		return fmt.Errorf("failed to produce %s output: %w", outputFormat, err)
	}

	if err := os.WriteFile(outputPath, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.WithFields(logrus.Fields{"format": outputFormat, "output": outputPath, "bytes": len(output)}).Info("done")
	return nil
}

// emit dispatches to the raw-binary or ELF32/ELF64 writer named by format.
func emit(p *x86_64.Program, format, fileName string) ([]byte, error) {
	switch format {
	case "bin":
		return x86_64.RawBinary(p)
	case "elf32":
		return elf.Write32(p, fileName)
	case "elf64":
		return elf.Write64(p, fileName)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// orderedTokens flattens the lexer's "line:column"-keyed token map into
// source order. The keys are zero-padded fixed-width strings, so a plain
// lexical sort already yields positional order.
func orderedTokens(tokenMap map[string]kasm.Token) []kasm.Token {
	keys := make([]string, 0, len(tokenMap))
	for k := range tokenMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]kasm.Token, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, tokenMap[k])
	}
	return tokens
}

// resolveFilePath validates the CLI arguments and returns the absolute path
// to the assembly file.
func resolveFilePath(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("no assembly file provided")
	}
	if args[0] == "" {
		return "", fmt.Errorf("assembly file path is empty")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("unable to get current working directory: %w", err)
	}

	fullPath := filepath.Join(cwd, args[0])
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", fmt.Errorf("assembly file does not exist at path: %s", fullPath)
	}

	return fullPath, nil
}

// readSourceFile reads the assembly source file and returns its content.
func readSourceFile(path string) (string, error) {
	sourceBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read assembly file: %w", err)
	}
	return string(sourceBytes), nil
}

// preProcess runs the pre-processing phases (includes, conditionals) and
// snapshots each transformation in the tracker.
func preProcess(source string, tracker *lineMap.Tracker) string {
	source = preProcessIncludes(source, tracker)
	source = preProcessConditionals(source, tracker)
	return source
}

// preProcessIncludes handles the %include directives of the source (one
// level: %include lines inside an included file are not expanded), rejects
// a path included twice, and snapshots the result with source file
// annotations. Include cycles across files are not detected.
func preProcessIncludes(source string, tracker *lineMap.Tracker) string {
	source, inclusions := kasm.PreProcessingHandleIncludes(source)

	seen := make(map[string]bool, len(inclusions))
	trackerInclusions := make([]lineMap.Inclusion, 0, len(inclusions))
	for _, inc := range inclusions {
		if seen[inc.IncludedFilePath] {
			panic(fmt.Sprintf("pre-processing error: circular inclusion of '%s' at line %d",
				inc.IncludedFilePath, inc.LineNumber))
		}
		seen[inc.IncludedFilePath] = true
		trackerInclusions = append(trackerInclusions, lineMap.Inclusion{
			FilePath:   inc.IncludedFilePath,
			LineNumber: inc.LineNumber,
		})
	}

	tracker.SnapshotWithInclusions(source, trackerInclusions)
	return source
}

// preProcessConditionals evaluates %ifdef / %ifndef / %else / %endif blocks,
// and snapshots the result.
func preProcessConditionals(source string, tracker *lineMap.Tracker) string {
	symbolTable := kasm.PreProcessingCreateSymbolTable(source)
	source = kasm.PreProcessingHandleConditionals(source, symbolTable)

	tracker.Snapshot(source)
	return source
}
