package eval

import (
	"strings"
	"testing"

	"github.com/calebgr/tracedbg/pkg/types"
)

func TestEvalExpression(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	v, err := ctx.Eval("1 + 2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Repr != "3" {
		t.Errorf("result = %q, want 3", v.Repr)
	}
	if !v.Truthy {
		t.Errorf("number should be truthy")
	}
}

func TestEvalTruthiness(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	cases := []struct {
		expr   string
		truthy bool
	}{
		{"true", true},
		{"0", true}, // zero is truthy in Lua
		{"''", true},
		{"false", false},
		{"nil", false},
	}
	for _, c := range cases {
		v, err := ctx.Eval(c.expr)
		if err != nil {
			t.Fatalf("Eval(%q): %v", c.expr, err)
		}
		if v.Truthy != c.truthy {
			t.Errorf("truthiness of %q = %v, want %v", c.expr, v.Truthy, c.truthy)
		}
	}
}

func TestExecAssignsLocally(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	if err := ctx.Exec("x = 41; x = x + 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := ctx.Eval("x")
	if err != nil {
		t.Fatalf("Eval after Exec: %v", err)
	}
	if v.Repr != "42" {
		t.Errorf("x = %q, want 42", v.Repr)
	}
}

func TestContextsIsolateLocals(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	a := m.NewContext()
	b := m.NewContext()

	a.Set("x", 1)
	v, err := b.Eval("x")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Repr != "nil" {
		t.Errorf("binding leaked between contexts: x = %q", v.Repr)
	}
}

func TestContextSeesGlobals(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	a := m.NewContext()
	b := m.NewContext()

	// an explicit global assignment is visible everywhere
	if err := a.Exec("_G.shared = 7"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := b.Eval("shared")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Repr != "7" {
		t.Errorf("global not visible from other context: %q", v.Repr)
	}
}

func TestVariablesSortedByName(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()
	ctx.Set("zeta", 1)
	ctx.Set("alpha", "hi")

	vars := ctx.Variables(types.ScopeLocal)
	if len(vars) != 2 {
		t.Fatalf("got %d variables, want 2", len(vars))
	}
	if vars[0].Name != "alpha" || vars[1].Name != "zeta" {
		t.Errorf("variables not sorted: %+v", vars)
	}
	if vars[0].Type != "string" || vars[1].Type != "number" {
		t.Errorf("variable types wrong: %+v", vars)
	}
}

func TestVariablePathResolution(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()
	if err := ctx.Exec("acct = { owner = { name = 'ada' }, balance = 10 }"); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	vars, err := ctx.Variable("acct.owner", types.ScopeLocal)
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}
	if len(vars) != 1 || vars[0].Name != "name" || vars[0].Repr != "ada" {
		t.Errorf("children of acct.owner = %+v", vars)
	}

	if _, err := ctx.Variable("acct.missing", types.ScopeLocal); err == nil {
		t.Errorf("resolving an undefined path should fail")
	}
}

func TestCompleteIncludesKeywordsAndBindings(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()
	ctx.Set("formula", 1)

	words := ctx.Complete("fo")
	var hasBinding, hasKeyword bool
	for _, w := range words {
		if w == "formula" {
			hasBinding = true
		}
		if w == "for" {
			hasKeyword = true
		}
	}
	if !hasBinding || !hasKeyword {
		t.Errorf("completions for 'fo' = %v", words)
	}
}

func TestCheckExpr(t *testing.T) {
	if err := CheckExpr("x > 5 and y < 3"); err != nil {
		t.Errorf("valid condition rejected: %v", err)
	}
	if err := CheckExpr("x >"); err == nil {
		t.Errorf("malformed condition accepted")
	}
}

func TestRuntimeErrorInfo(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	_, err := ctx.Eval("nil + 1")
	if err == nil {
		t.Fatalf("expected a runtime error")
	}
	info := ErrorInfo(err)
	if info.Type != "RuntimeError" {
		t.Errorf("type = %q, want RuntimeError", info.Type)
	}
	if info.Message == "" {
		t.Errorf("empty error message")
	}
	for _, f := range info.Frames {
		if strings.HasPrefix(f.File, "<") {
			t.Errorf("backtrace contains debugger chunk %q", f.File)
		}
	}
}

func TestSyntaxErrorLoc(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	err := ctx.Exec("if then end")
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if info := ErrorInfo(err); info.Type != "SyntaxError" {
		t.Errorf("type = %q, want SyntaxError", info.Type)
	}
	if _, ok := SyntaxLoc(err); !ok {
		t.Errorf("no position extracted from syntax error")
	}
}

func TestProgramStatementLines(t *testing.T) {
	src := []byte("x = 1\n\ny = 2\nprint(x + y)\n")
	prog, err := ParseProgram(src, "script.lua")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if prog.Len() != 3 {
		t.Fatalf("Len = %d, want 3", prog.Len())
	}
	want := []int{1, 3, 4}
	for i, w := range want {
		if prog.Line(i) != w {
			t.Errorf("statement %d at line %d, want %d", i, prog.Line(i), w)
		}
	}
	if prog.Line(99) != 0 {
		t.Errorf("out-of-range statement should report line 0")
	}
}

func TestProgramParseError(t *testing.T) {
	_, err := ParseProgram([]byte("x = = 1\n"), "bad.lua")
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	info := ErrorInfo(err)
	if info.Type != "SyntaxError" {
		t.Errorf("type = %q, want SyntaxError", info.Type)
	}
	if len(info.Frames) == 0 || info.Frames[0].File != "bad.lua" {
		t.Errorf("parse error position = %+v", info.Frames)
	}
}

func TestRunStatementSharesState(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	prog, err := ParseProgram([]byte("x = 10\nx = x * 2\n"), "script.lua")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	for i := 0; i < prog.Len(); i++ {
		if err := ctx.RunStatement(prog, i); err != nil {
			t.Fatalf("statement %d: %v", i, err)
		}
	}
	v, err := ctx.Eval("x")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Repr != "20" {
		t.Errorf("x = %q after running the program, want 20", v.Repr)
	}
}

func TestRunStatementRuntimeError(t *testing.T) {
	m := NewMachine()
	defer m.Close()
	ctx := m.NewContext()

	prog, err := ParseProgram([]byte("y = nil + 1\n"), "script.lua")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	runErr := ctx.RunStatement(prog, 0)
	if runErr == nil {
		t.Fatalf("expected a runtime error")
	}
	info := ErrorInfo(runErr)
	if info.Type != "RuntimeError" {
		t.Errorf("type = %q, want RuntimeError", info.Type)
	}
}
