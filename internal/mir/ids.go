// Package mir implements the register-based SSA intermediate
// representation of spec.md §3 and §4.3/§4.7: typed values, basic blocks,
// terminators, ϕ-nodes, function signatures with calling conventions, and
// the module-level validator.
package mir

// FuncID uniquely identifies a function within a Module.
type FuncID int32

// BlockID uniquely identifies a basic block within a Function.
type BlockID int32

// ValueID is an SSA name, unique within a Function.
type ValueID int32

// NoValue is the zero-value sentinel for an absent optional ValueID.
const NoValue ValueID = -1
