package eval

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/calebgr/tracedbg/pkg/types"
)

// chunk names used for debugger-injected code. Backtrace collection stops
// at frames belonging to them.
const (
	evalChunk = "<eval>"
	execChunk = "<exec>"
)

// Machine wraps a gopher-lua state shared by the evaluation contexts of one
// interpreter instance.
//
// gopher-lua's LState is not goroutine-safe; all contexts derived from a
// Machine serialize their operations through its mutex.
type Machine struct {
	L *lua.LState

	mu sync.Mutex
}

// NewMachine creates a Lua state with only the safe standard libraries
// opened (no io, os, debug or package access from evaluated expressions).
func NewMachine() *Machine {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	return &Machine{L: L}
}

// Close releases the underlying Lua state.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}

// NewContext creates an evaluation context whose local bindings shadow the
// machine's globals. Assignments made through Exec land in the context's
// local table.
func (m *Machine) NewContext() *LuaContext {
	env := m.L.NewTable()
	meta := m.L.NewTable()
	meta.RawSetString("__index", m.L.G.Global)
	m.L.SetMetatable(env, meta)
	return &LuaContext{m: m, env: env}
}

// LuaContext is a frame's evaluation context backed by a Lua environment
// table with global fallback.
type LuaContext struct {
	m   *Machine
	env *lua.LTable
}

// Set installs a local binding, converting basic Go values to Lua values.
// It is how interpreter hooks publish frame locals to the debugger.
func (c *LuaContext) Set(name string, value interface{}) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.env.RawSetString(name, toLValue(value))
}

// Eval evaluates a single expression in this context.
func (c *LuaContext) Eval(expr string) (Value, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	v, err := c.run("return "+expr, evalChunk, true)
	if err != nil {
		return Value{}, err
	}
	return Value{Repr: v.String(), Truthy: lua.LVAsBool(v)}, nil
}

// Exec executes statements in this context for their side effects.
func (c *LuaContext) Exec(stmt string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	_, err := c.run(stmt, execChunk, false)
	return err
}

// run loads source, rebinds its environment to this context and calls it.
// The machine mutex must be held.
func (c *LuaContext) run(source, name string, wantValue bool) (lua.LValue, error) {
	L := c.m.L

	fn, err := L.Load(strings.NewReader(source), name)
	if err != nil {
		return lua.LNil, err
	}

	L.SetTop(0)
	L.SetFEnv(fn, c.env)
	L.Push(fn)

	nret := 0
	if wantValue {
		nret = lua.MultRet
	}
	if err := L.PCall(0, nret, nil); err != nil {
		L.SetTop(0)
		return lua.LNil, err
	}

	var v lua.LValue = lua.LNil
	if wantValue && L.GetTop() > 0 {
		v = L.Get(1)
	}
	L.SetTop(0)
	return v, nil
}

// Variables enumerates the bindings of the given scope, sorted by name.
func (c *LuaContext) Variables(scope int) []Variable {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	return tableVariables(c.scopeTable(scope))
}

// Variable resolves a dotted access path and enumerates the children of the
// resolved value. A non-table value resolves to itself.
func (c *LuaContext) Variable(path string, scope int) ([]Variable, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	parts := strings.Split(path, ".")
	var v lua.LValue = c.scopeTable(scope)
	for _, part := range parts {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("'%s' is not indexable in path %s", part, path)
		}
		v = c.m.L.GetField(tbl, part)
		if v == lua.LNil {
			return nil, fmt.Errorf("'%s' is not defined in path %s", part, path)
		}
	}

	if tbl, ok := v.(*lua.LTable); ok {
		return tableVariables(tbl), nil
	}
	return []Variable{{
		Name: parts[len(parts)-1],
		Type: v.Type().String(),
		Repr: v.String(),
	}}, nil
}

// Complete returns visible names starting with prefix, including Lua
// keywords, sorted and deduplicated.
func (c *LuaContext) Complete(prefix string) []string {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	seen := make(map[string]bool)
	collect := func(tbl *lua.LTable) {
		tbl.ForEach(func(k, _ lua.LValue) {
			if s, ok := k.(lua.LString); ok && strings.HasPrefix(string(s), prefix) {
				seen[string(s)] = true
			}
		})
	}
	collect(c.env)
	collect(c.m.L.G.Global)
	for _, kw := range luaKeywords {
		if strings.HasPrefix(kw, prefix) {
			seen[kw] = true
		}
	}

	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func (c *LuaContext) scopeTable(scope int) *lua.LTable {
	if scope == types.ScopeGlobal {
		return c.m.L.G.Global
	}
	return c.env
}

func tableVariables(tbl *lua.LTable) []Variable {
	var vars []Variable
	tbl.ForEach(func(k, v lua.LValue) {
		name := k.String()
		vars = append(vars, Variable{
			Name: name,
			Type: v.Type().String(),
			Repr: v.String(),
		})
	})
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// CheckExpr reports whether expr parses as a single expression. Used to
// validate breakpoint and watch conditions before they are stored.
func CheckExpr(expr string) error {
	_, err := parse.Parse(strings.NewReader("return "+expr), "<cond>")
	return err
}

var luaKeywords = []string{
	"and", "break", "do", "else", "elseif", "end", "false", "for",
	"function", "if", "in", "local", "nil", "not", "or", "repeat",
	"return", "then", "true", "until", "while",
}

func toLValue(value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case lua.LValue:
		return v
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

var (
	tracebackEntry = regexp.MustCompile(`^\s*(.+?):(\d+):`)

	// syntax errors carry their position inline:
	//   source line:N(column:M) near 'tok':   message
	syntaxEntry = regexp.MustCompile(`^(.+?) line:(\d+)\(`)
)

// luaErrorInfo converts a gopher-lua error into the exception report shape.
// Backtrace frames are collected until the first debugger-injected chunk.
func luaErrorInfo(err error) *types.ExceptionInfo {
	var apiErr *lua.ApiError
	if !stderrors.As(err, &apiErr) {
		return nil
	}

	typ := "RuntimeError"
	if apiErr.Type == lua.ApiErrorSyntax {
		typ = "SyntaxError"
	}

	info := &types.ExceptionInfo{
		Type:    typ,
		Message: strings.TrimSpace(apiErr.Object.String()),
	}

	if typ == "SyntaxError" {
		if loc, ok := syntaxErrorLoc(info.Message); ok {
			info.Frames = append(info.Frames, loc)
		}
		return info
	}

	for _, line := range strings.Split(apiErr.StackTrace, "\n") {
		m := tracebackEntry.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file := m[1]
		if strings.HasPrefix(file, "<") || strings.HasPrefix(file, "[") {
			// debugger-injected or dynamically generated chunk:
			// stop collecting here
			break
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		info.Frames = append(info.Frames, types.SourceLoc{File: file, Line: n})
	}
	return info
}

// SyntaxLoc extracts the (file, line) position from a Lua syntax error
// message, for syntax-error reports.
func SyntaxLoc(err error) (types.SourceLoc, bool) {
	var apiErr *lua.ApiError
	if !stderrors.As(err, &apiErr) || apiErr.Type != lua.ApiErrorSyntax {
		return types.SourceLoc{}, false
	}
	return syntaxErrorLoc(apiErr.Object.String())
}

func syntaxErrorLoc(msg string) (types.SourceLoc, bool) {
	m := syntaxEntry.FindStringSubmatch(msg)
	if m == nil {
		m = tracebackEntry.FindStringSubmatch(msg)
	}
	if m == nil {
		return types.SourceLoc{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return types.SourceLoc{}, false
	}
	return types.SourceLoc{File: m[1], Line: n}, true
}
