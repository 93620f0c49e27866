// Package eval provides the evaluation-context abstraction of the debug
// engine: the set of bindings in which breakpoint conditions, watch
// expressions and user evaluate/execute commands run at a given frame.
//
// The concrete implementation is backed by gopher-lua (lua.go). The engine
// itself only depends on the Context interface, so tests and alternative
// interpreter hooks can supply their own contexts.
package eval

import "github.com/calebgr/tracedbg/pkg/types"

// Variable is one binding of a context, rendered for inspection.
type Variable struct {
	Name string
	Type string
	Repr string
}

// Value is the result of evaluating an expression.
type Value struct {
	// Repr is the rendered value. Watchpoint change detection compares
	// these renderings.
	Repr string

	// Truthy reports whether the value counts as true for breakpoint
	// conditions and always-mode watchpoints.
	Truthy bool
}

// Context is the set of bindings of one execution frame.
//
// Implementations are not required to be safe for concurrent use; the
// engine only evaluates in a context while its owning thread is halted or
// at a trace-event safe point.
type Context interface {
	// Eval evaluates a single expression and returns its value.
	Eval(expr string) (Value, error)

	// Exec executes one or more statements for their side effects.
	Exec(stmt string) error

	// Variables enumerates the bindings of the given scope
	// (types.ScopeLocal or types.ScopeGlobal), sorted by name.
	Variables(scope int) []Variable

	// Variable resolves a dotted access path ("tbl.field.sub") against the
	// context and enumerates the children of the resolved value.
	Variable(path string, scope int) ([]Variable, error)

	// Complete returns the names visible in this context that start with
	// the given prefix, sorted.
	Complete(prefix string) []string
}

// ErrorInfo converts an evaluation error into the exception shape reported
// to the controller. Implemented for the Lua backend in lua.go; for foreign
// errors it degrades to a bare message.
func ErrorInfo(err error) *types.ExceptionInfo {
	if info := luaErrorInfo(err); info != nil {
		return info
	}
	if info := parseErrorInfo(err); info != nil {
		return info
	}
	return &types.ExceptionInfo{Type: "Error", Message: err.Error()}
}
