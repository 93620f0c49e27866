// Package breakpoint implements the process-wide registry of line
// breakpoints, function-entry breakpoints and watch expressions, together
// with their firing rules.
//
// The store is shared by every execution context of a session. Mutations
// are plain list edits guarded by the store mutex; evaluation of conditions
// and watch expressions happens in the frame context passed by the tracer,
// outside the store lock, and evaluation failures are always swallowed (a
// failing condition never fires and never propagates).
package breakpoint

import (
	"sync"

	"github.com/calebgr/tracedbg/internal/eval"
)

// Breakpoint is a line breakpoint. Unique by (file, line).
type Breakpoint struct {
	Enabled     bool
	File        string
	Line        int
	Temporary   bool
	Condition   string
	IgnoreCount int
}

// FuncBreakpoint is a breakpoint on function entry, keyed by the declaring
// scope and the call identifier.
type FuncBreakpoint struct {
	Enabled   bool
	Scope     string
	Name      string
	Temporary bool
}

// WatchMode selects when a watchpoint fires.
type WatchMode int

const (
	// WatchAlways fires whenever the expression evaluates truthy.
	WatchAlways WatchMode = iota
	// WatchCreated fires the first time the expression evaluates at a
	// given frame position.
	WatchCreated
	// WatchChanged fires when the evaluated value differs from the last
	// one recorded at the frame position. The first observation counts
	// as a change.
	WatchChanged
)

// Watchpoint is a conditionally-triggered breakpoint evaluated on every
// line event. Per-frame trigger state is keyed by call depth, so recursive
// calls at different depths track created/changed independently.
type Watchpoint struct {
	Enabled     bool
	Expression  string
	Temporary   bool
	Mode        WatchMode
	IgnoreCount int

	frames map[int]*watchState
}

type watchState struct {
	evaluated bool
	last      string
}

// Notifier receives notifications when a temporary breakpoint or watchpoint
// is deleted because it fired.
type Notifier interface {
	ClearedBreak(file string, line int)
	ClearedWatch(expression string)
}

// NopNotifier is a Notifier that discards all notifications.
type NopNotifier struct{}

func (NopNotifier) ClearedBreak(string, int) {}
func (NopNotifier) ClearedWatch(string)      {}

// Store is the ordered registry of breakpoints and watchpoints.
type Store struct {
	mu      sync.Mutex
	breaks  []*Breakpoint
	funcs   []*FuncBreakpoint
	watches []*Watchpoint
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{}
}

// SetBreak installs a line breakpoint. An existing breakpoint at the same
// (file, line) is replaced, keeping uniqueness.
func (s *Store) SetBreak(file string, line int, temporary bool, condition string) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp := &Breakpoint{
		Enabled:   true,
		File:      file,
		Line:      line,
		Temporary: temporary,
		Condition: condition,
	}
	for i, old := range s.breaks {
		if old.File == file && old.Line == line {
			s.breaks[i] = bp
			return bp
		}
	}
	s.breaks = append(s.breaks, bp)
	return bp
}

// ClearBreak removes the breakpoint at (file, line). Idempotent.
func (s *Store) ClearBreak(file string, line int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, bp := range s.breaks {
		if bp.File == file && bp.Line == line {
			s.breaks = append(s.breaks[:i], s.breaks[i+1:]...)
			return
		}
	}
}

// EnableBreak toggles a breakpoint. Unknown breakpoints are ignored.
func (s *Store) EnableBreak(file string, line int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp := s.findBreak(file, line); bp != nil {
		bp.Enabled = enabled
	}
}

// SetBreakIgnore sets the ignore count of a breakpoint.
func (s *Store) SetBreakIgnore(file string, line int, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp := s.findBreak(file, line); bp != nil {
		bp.IgnoreCount = count
	}
}

// Break returns the breakpoint at (file, line), or nil.
func (s *Store) Break(file string, line int) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBreak(file, line)
}

// Breaks returns a snapshot of the line breakpoints in insertion order.
func (s *Store) Breaks() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Breakpoint, len(s.breaks))
	copy(out, s.breaks)
	return out
}

func (s *Store) findBreak(file string, line int) *Breakpoint {
	for _, bp := range s.breaks {
		if bp.File == file && bp.Line == line {
			return bp
		}
	}
	return nil
}

// SetFuncBreak installs a function-entry breakpoint, unique by
// (scope, name).
func (s *Store) SetFuncBreak(scope, name string, temporary bool) *FuncBreakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb := &FuncBreakpoint{Enabled: true, Scope: scope, Name: name, Temporary: temporary}
	for i, old := range s.funcs {
		if old.Scope == scope && old.Name == name {
			s.funcs[i] = fb
			return fb
		}
	}
	s.funcs = append(s.funcs, fb)
	return fb
}

// ClearFuncBreak removes a function-entry breakpoint. Idempotent.
func (s *Store) ClearFuncBreak(scope, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, fb := range s.funcs {
		if fb.Scope == scope && fb.Name == name {
			s.funcs = append(s.funcs[:i], s.funcs[i+1:]...)
			return
		}
	}
}

// SetWatch installs a watch expression. An existing watchpoint with the
// same expression text is replaced.
func (s *Store) SetWatch(expression string, mode WatchMode, temporary bool) *Watchpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	wp := &Watchpoint{
		Enabled:    true,
		Expression: expression,
		Mode:       mode,
		Temporary:  temporary,
		frames:     make(map[int]*watchState),
	}
	for i, old := range s.watches {
		if old.Expression == expression {
			s.watches[i] = wp
			return wp
		}
	}
	s.watches = append(s.watches, wp)
	return wp
}

// ClearWatch removes the watchpoint with the given expression. Idempotent.
func (s *Store) ClearWatch(expression string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearWatchLocked(expression)
}

func (s *Store) clearWatchLocked(expression string) {
	for i, wp := range s.watches {
		if wp.Expression == expression {
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			return
		}
	}
}

// EnableWatch toggles a watchpoint. Unknown expressions are ignored.
func (s *Store) EnableWatch(expression string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wp := s.findWatch(expression); wp != nil {
		wp.Enabled = enabled
	}
}

// SetWatchIgnore sets the ignore count of a watchpoint.
func (s *Store) SetWatchIgnore(expression string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wp := s.findWatch(expression); wp != nil {
		wp.IgnoreCount = count
	}
}

// Watch returns the watchpoint with the given expression, or nil.
func (s *Store) Watch(expression string) *Watchpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findWatch(expression)
}

func (s *Store) findWatch(expression string) *Watchpoint {
	for _, wp := range s.watches {
		if wp.Expression == expression {
			return wp
		}
	}
	return nil
}

// CheckLine scans line breakpoints in insertion order and reports whether
// one fires at (file, line). Conditions are evaluated in ctx; evaluation
// errors count as a false condition. A temporary breakpoint is deleted
// before the firing is reported.
//
// Matching entries are collected under the lock, but conditions are
// evaluated and cleared notifications emitted outside it, so one thread's
// slow condition never stalls the line events of every other thread. The
// firing decision reacquires the lock and revalidates the entry: a
// breakpoint removed or replaced while its condition ran does not fire.
func (s *Store) CheckLine(file string, line int, ctx eval.Context, notify Notifier) bool {
	s.mu.Lock()
	var matches []*Breakpoint
	for _, bp := range s.breaks {
		if bp.Enabled && bp.File == file && bp.Line == line {
			matches = append(matches, bp)
		}
	}
	s.mu.Unlock()

	for _, bp := range matches {
		if bp.Condition != "" {
			v, err := ctx.Eval(bp.Condition)
			if err != nil || !v.Truthy {
				continue
			}
		}

		fired, cleared := false, false
		s.mu.Lock()
		if s.containsBreakLocked(bp) {
			switch {
			case bp.IgnoreCount > 0:
				bp.IgnoreCount--
			case bp.Temporary:
				s.removeBreakLocked(bp)
				fired, cleared = true, true
			default:
				fired = true
			}
		}
		s.mu.Unlock()

		if cleared {
			notify.ClearedBreak(file, line)
		}
		if fired {
			return true
		}
	}
	return false
}

func (s *Store) containsBreakLocked(bp *Breakpoint) bool {
	for _, cur := range s.breaks {
		if cur == bp {
			return true
		}
	}
	return false
}

func (s *Store) removeBreakLocked(bp *Breakpoint) {
	for i, cur := range s.breaks {
		if cur == bp {
			s.breaks = append(s.breaks[:i], s.breaks[i+1:]...)
			return
		}
	}
}

// CheckFunc reports whether a function-entry breakpoint fires for the call
// identified by (scope, name).
func (s *Store) CheckFunc(scope, name string, notify Notifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, fb := range s.funcs {
		if !fb.Enabled || fb.Scope != scope || fb.Name != name {
			continue
		}
		if fb.Temporary {
			s.funcs = append(s.funcs[:i], s.funcs[i+1:]...)
		}
		return true
	}
	return false
}

// CheckWatches evaluates every enabled watchpoint at the given call depth
// and reports whether one fires. Per-frame created/changed state is keyed
// by depth. Evaluation failures reset the frame state to "not yet
// evaluated" instead of firing.
//
// As with CheckLine, expressions are evaluated and cleared notifications
// emitted outside the store lock; trigger-state updates reacquire it and
// revalidate the entry first.
func (s *Store) CheckWatches(depth int, ctx eval.Context, notify Notifier) bool {
	s.mu.Lock()
	active := make([]*Watchpoint, 0, len(s.watches))
	for _, wp := range s.watches {
		if wp.Enabled && wp.Expression != "" {
			active = append(active, wp)
		}
	}
	s.mu.Unlock()

	for _, wp := range active {
		v, err := ctx.Eval(wp.Expression)

		fired := false
		cleared := ""
		s.mu.Lock()
		if s.containsWatchLocked(wp) {
			switch {
			case err != nil:
				delete(wp.frames, depth)
			case !s.watchHitLocked(wp, depth, v):
			case wp.IgnoreCount > 0:
				wp.IgnoreCount--
			case wp.Temporary:
				s.clearWatchLocked(wp.Expression)
				fired, cleared = true, wp.Expression
			default:
				fired = true
			}
		}
		s.mu.Unlock()

		if cleared != "" {
			notify.ClearedWatch(cleared)
		}
		if fired {
			return true
		}
	}
	return false
}

func (s *Store) containsWatchLocked(wp *Watchpoint) bool {
	for _, cur := range s.watches {
		if cur == wp {
			return true
		}
	}
	return false
}

// watchHitLocked applies the trigger mode to a freshly evaluated value and
// updates the per-frame state.
func (s *Store) watchHitLocked(wp *Watchpoint, depth int, v eval.Value) bool {
	st := wp.frames[depth]
	if st == nil {
		st = &watchState{}
		wp.frames[depth] = st
	}

	switch wp.Mode {
	case WatchCreated:
		if st.evaluated {
			return false
		}
		st.evaluated = true
		st.last = v.Repr
		return true

	case WatchChanged:
		changed := !st.evaluated || st.last != v.Repr
		st.evaluated = true
		st.last = v.Repr
		return changed

	default: // WatchAlways
		st.evaluated = true
		st.last = v.Repr
		return v.Truthy
	}
}
