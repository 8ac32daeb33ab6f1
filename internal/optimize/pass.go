// Package optimize implements the MIR-level transforming passes of
// spec.md §§4.4-4.6: escape analysis, the free-insertion pass, and
// loop-invariant code motion with allocation hoisting/sinking. Every pass
// runs over a *mir.Function and is followed by mir.Validate at the call
// site, matching spec.md §4.7's "run after lowering and after each
// transforming pass".
package optimize

import "github.com/darmie/rayzor/internal/mir"

// Result reports what a pass changed, grounded on
// original_source/compiler/src/ir/optimization.rs's OptimizationResult:
// passes report counts rather than a boolean so a driver can log what
// happened without re-diffing the function.
type Result struct {
	Modified               bool
	InstructionsEliminated int
	InstructionsInserted   int
	BlocksEliminated       int
	Stats                  map[string]int
}

// Unchanged is the zero result returned by a pass that found nothing to do.
func Unchanged() Result { return Result{} }

// Pass is one MIR-to-MIR transformation.
type Pass interface {
	Name() string
	RunOnFunction(fn *mir.Function) (Result, error)
}

// RunOnModule runs p over every function in mod, accumulating Result.
func RunOnModule(p Pass, mod *mir.Module) (Result, error) {
	total := Result{Stats: map[string]int{}}
	for _, fn := range mod.Functions {
		r, err := p.RunOnFunction(fn)
		if err != nil {
			return total, err
		}
		if r.Modified {
			total.Modified = true
		}
		total.InstructionsEliminated += r.InstructionsEliminated
		total.InstructionsInserted += r.InstructionsInserted
		total.BlocksEliminated += r.BlocksEliminated
		for k, v := range r.Stats {
			total.Stats[k] += v
		}
	}
	return total, nil
}
