// Package diag implements the error taxonomy and diagnostics bag described
// in spec.md §7, grounded on sentra/internal/errors' SentraError shape.
package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic by the taxonomy of spec.md §7.
type Kind string

const (
	// Front-end kinds: collected, never fatal to the rest of the unit.
	KindParseFailure           Kind = "ParseFailure"
	KindUnresolvedSymbol       Kind = "UnresolvedSymbol"
	KindTypeMismatch           Kind = "TypeMismatch"
	KindCircularInheritance    Kind = "CircularInheritance"
	KindInterfaceExtendsClass  Kind = "InterfaceExtendsClass"
	KindInvalidOverride        Kind = "InvalidOverride"
	KindInvalidGenericConstraint Kind = "InvalidGenericConstraint"
	KindNullSafetyViolation    Kind = "NullSafetyViolation"
	KindMissingField           Kind = "MissingField"
	KindVisibilityViolation    Kind = "VisibilityViolation"

	// Lowering kinds: internal compiler errors, abort the current compilation.
	KindUnsupportedHirForm   Kind = "UnsupportedHirForm"
	KindSsaInvariantViolation Kind = "SsaInvariantViolation"
	KindCfgMalformed         Kind = "CfgMalformed"

	// Codegen kinds: propagate upward, may retry at a lower tier.
	KindBackendInitFailed   Kind = "BackendInitFailed"
	KindInstructionNotTranslatable Kind = "InstructionNotTranslatable"
	KindFinalizationFailed Kind = "FinalizationFailed"

	// Linker kinds: fatal for that object file.
	KindInvalidMagic      Kind = "InvalidMagic"
	KindInvalidSymbol     Kind = "InvalidSymbol"
	KindAddObjectFailed   Kind = "AddObjectFailed"
	KindRelocationFailed  Kind = "RelocationFailed"
	KindSymbolNotFound    Kind = "SymbolNotFound"
	KindObjectFormatMismatch Kind = "ObjectFormatMismatch"

	// Tier kinds: recoverable, leave previous tier installed.
	KindPromotionFailed Kind = "PromotionFailed"
)

// SourceLocation is a location in source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// Span is a secondary location attached to a Diagnostic, with an optional
// label explaining its relevance (spec.md §7 "optional secondary spans").
type Span struct {
	Location SourceLocation
	Label    string
}

// Diagnostic is a single user-visible failure: an error code (Kind), a
// primary source span, a suggestion when available, and optional secondary
// spans and notes (spec.md §7).
type Diagnostic struct {
	Kind       Kind
	Message    string
	Location   SourceLocation
	HasLoc     bool
	Suggestion string
	HasSuggestion bool
	Secondary  []Span
	Notes      []string
}

// Error implements the error interface in the style of sentra's SentraError.
func (d *Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.Kind, d.Message)
	if d.HasLoc {
		fmt.Fprintf(&sb, "\n  at %s:%d:%d", d.Location.File, d.Location.Line, d.Location.Column)
	}
	if d.HasSuggestion {
		fmt.Fprintf(&sb, "\n  suggestion: %s", d.Suggestion)
	}
	for _, s := range d.Secondary {
		fmt.Fprintf(&sb, "\n  also at %s:%d:%d (%s)", s.Location.File, s.Location.Line, s.Location.Column, s.Label)
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&sb, "\n  note: %s", n)
	}
	return sb.String()
}

// New builds a front-end diagnostic without a location.
func New(kind Kind, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message}
}

// At attaches a primary source location.
func (d *Diagnostic) At(file string, line, col int) *Diagnostic {
	d.Location = SourceLocation{File: file, Line: line, Column: col}
	d.HasLoc = true
	return d
}

// WithSuggestion attaches a suggested fix.
func (d *Diagnostic) WithSuggestion(s string) *Diagnostic {
	d.Suggestion = s
	d.HasSuggestion = true
	return d
}

// WithNote appends a note.
func (d *Diagnostic) WithNote(note string) *Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// Bag collects front-end diagnostics. Errors are never used for control
// flow in the front end (spec.md §7): callers append to the bag and keep
// going, then inspect HasErrors at the end of a pass.
type Bag struct {
	entries []*Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(d *Diagnostic) { b.entries = append(b.entries, d) }

// All returns every collected diagnostic.
func (b *Bag) All() []*Diagnostic { return b.entries }

// HasErrors reports whether any diagnostic was collected.
func (b *Bag) HasErrors() bool { return len(b.entries) > 0 }

// ExitCode implements spec.md §7's driver contract: exit code 1 on any
// error reaching the compiler driver, 0 otherwise.
func (b *Bag) ExitCode() int {
	if b.HasErrors() {
		return 1
	}
	return 0
}
