package diag

import (
	"log"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// verbosity is the process-wide verbosity level set from
// config.Tiered.Verbosity (spec.md §6). Stored atomically since both
// compiler-driver code and tier worker goroutines read it.
var verbosity atomic.Int32

// SetVerbosity sets the level Logf gates against. At 0 only Logf calls
// made with level 0 print, matching sentra's own "verbosity-gated prints"
// convention.
func SetVerbosity(level int) { verbosity.Store(int32(level)) }

// Verbosity reports the current level.
func Verbosity() int { return int(verbosity.Load()) }

// Logf prints format to the standard logger iff the process verbosity is
// at least level. Subsystems call this instead of bare log.Printf so a
// single CompilerOptions.Verbosity knob controls every [tier]/[linker]/
// [codegen]-prefixed line the driver produces.
func Logf(level int, format string, args ...any) {
	if Verbosity() < level {
		return
	}
	log.Printf(format, args...)
}

// Bytes renders n as a human-readable byte count (e.g. "2.0 kB"), used in
// allocation/heap diagnostics and tier-promotion logs so large sizes and
// call counts stay readable at higher verbosity levels.
func Bytes(n uint64) string { return humanize.Bytes(n) }

// Comma renders n with thousands separators (e.g. "12,345"), used for
// call counts in tier-promotion logs.
func Comma(n uint64) string { return humanize.Comma(int64(n)) }
