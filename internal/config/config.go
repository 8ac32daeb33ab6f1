// Package config defines the compiler and tiered-execution configuration
// surface described in spec.md §6.
package config

// OptLevel is the optimization-level option.
type OptLevel string

const (
	OptNone OptLevel = "none"
	OptO1   OptLevel = "O1"
	OptO2   OptLevel = "O2"
	OptO3   OptLevel = "O3"
	OptOs   OptLevel = "Os"
)

// DebugInfoLevel controls how much source-location metadata survives codegen.
type DebugInfoLevel string

const (
	DebugNone     DebugInfoLevel = "none"
	DebugLineOnly DebugInfoLevel = "line-only"
	DebugFull     DebugInfoLevel = "full"
)

// BailoutStrategy selects how aggressively speculative tier assumptions are
// validated before commit (spec.md §4.10).
type BailoutStrategy string

const (
	BailoutQuick    BailoutStrategy = "quick"
	BailoutThorough BailoutStrategy = "thorough"
)

// Compiler holds the recognized compiler options of spec.md §6.
type Compiler struct {
	LoadStdlib        bool
	OptimizationLevel OptLevel
	DebugInfo         DebugInfoLevel
	TargetTriple      string
}

// DefaultCompiler returns the baseline configuration: stdlib loaded,
// optimizations off, line-only debug info, host target triple.
func DefaultCompiler() Compiler {
	return Compiler{
		LoadStdlib:        true,
		OptimizationLevel: OptNone,
		DebugInfo:         DebugLineOnly,
		TargetTriple:      "x86_64-unknown-linux-gnu",
	}
}

// Tiered holds the tiered-execution configuration keys of spec.md §6.
type Tiered struct {
	InterpreterThreshold        uint64
	WarmThreshold               uint64
	HotThreshold                uint64
	BlazingThreshold            uint64
	SampleRate                  uint32
	EnableBackgroundOptimization bool
	OptimizationCheckIntervalMS int
	MaxParallelOptimizations    int
	StartInterpreted            bool
	Bailout                     BailoutStrategy
	MaxTierPromotions           int
	Verbosity                   int
}

// DefaultTiered returns standalone default thresholds (warm:100, hot:1000,
// blazing:10000); spec.md §8 scenario 2 overrides them with warm:10,
// hot:50, blazing:200.
func DefaultTiered() Tiered {
	return Tiered{
		InterpreterThreshold:         1,
		WarmThreshold:                100,
		HotThreshold:                 1000,
		BlazingThreshold:             10000,
		SampleRate:                   1,
		EnableBackgroundOptimization: true,
		OptimizationCheckIntervalMS:  50,
		MaxParallelOptimizations:     4,
		StartInterpreted:             false,
		Bailout:                      BailoutQuick,
		MaxTierPromotions:            3,
		Verbosity:                    0,
	}
}
