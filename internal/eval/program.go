package eval

import (
	"bytes"
	stderrors "errors"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/calebgr/tracedbg/pkg/types"
)

// Program is a parsed script held as its ordered top-level statements, so
// an interpreter driver can execute and report them one at a time.
type Program struct {
	name  string
	stmts []ast.Stmt
}

// ParseProgram parses Lua source into a Program. The name should be the
// script path; it becomes the chunk name in error tracebacks.
func ParseProgram(source []byte, name string) (*Program, error) {
	stmts, err := parse.Parse(bytes.NewReader(source), name)
	if err != nil {
		return nil, err
	}
	return &Program{name: name, stmts: stmts}, nil
}

// Name returns the chunk name the program was parsed under.
func (p *Program) Name() string { return p.name }

// Len returns the number of top-level statements.
func (p *Program) Len() int { return len(p.stmts) }

// Line returns the source line of statement i, or 0 when out of range.
func (p *Program) Line(i int) int {
	if i < 0 || i >= len(p.stmts) {
		return 0
	}
	return p.stmts[i].Line()
}

// RunStatement compiles and executes a single top-level statement of the
// program in this context.
//
// Each statement is compiled as its own chunk. Top-level locals therefore
// do not survive into the next statement; scripts run under the driver use
// plain assignments at top level, as in an interactive session.
func (c *LuaContext) RunStatement(p *Program, i int) error {
	if i < 0 || i >= len(p.stmts) {
		return nil
	}

	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	proto, err := lua.Compile(p.stmts[i:i+1], p.name)
	if err != nil {
		return err
	}

	L := c.m.L
	fn := L.NewFunctionFromProto(proto)
	L.SetTop(0)
	L.SetFEnv(fn, c.env)
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		L.SetTop(0)
		return err
	}
	L.SetTop(0)
	return nil
}

// parseErrorInfo converts a parser error into the syntax-error exception
// shape. Returns nil for other errors.
func parseErrorInfo(err error) *types.ExceptionInfo {
	var perr *parse.Error
	if !stderrors.As(err, &perr) {
		return nil
	}
	return &types.ExceptionInfo{
		Type:    "SyntaxError",
		Message: perr.Error(),
		Frames: []types.SourceLoc{{
			File: perr.Pos.Source,
			Line: perr.Pos.Line,
		}},
	}
}
