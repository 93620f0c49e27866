package engine

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/calebgr/tracedbg/internal/breakpoint"
	"github.com/calebgr/tracedbg/internal/config"
	"github.com/calebgr/tracedbg/pkg/types"
)

// Controller is the debugger's command surface: the tracer hands control to
// it when a thread halts, and reports through it. The real implementation
// is the protocol handler; NullController discards everything, for running
// traced code with no controller attached.
type Controller interface {
	breakpoint.Notifier

	// Poll consumes protocol input without blocking, so asynchronously
	// arriving breakpoint mutations take effect while the program runs.
	Poll()

	// CommandLoop blocks reading protocol lines until a stepping command
	// releases the halted thread or the transport closes.
	CommandLoop(ec *ExecutionContext)

	// ReportHalt emits the halt report for a stopped thread.
	ReportHalt(ec *ExecutionContext)

	// ReportException emits an exception report.
	ReportException(info *types.ExceptionInfo)

	// ReportExit emits the program-exit report.
	ReportExit(status int)

	// CallTrace emits one call/return trace record.
	CallTrace(event string, from, to types.SourceLoc, fromFn, toFn string)
}

// NullController satisfies Controller with no-ops.
type NullController struct {
	breakpoint.NopNotifier
}

func (NullController) Poll()                                                              {}
func (NullController) CommandLoop(*ExecutionContext)                                      {}
func (NullController) ReportHalt(*ExecutionContext)                                       {}
func (NullController) ReportException(*types.ExceptionInfo)                               {}
func (NullController) ReportExit(int)                                                     {}
func (NullController) CallTrace(string, types.SourceLoc, types.SourceLoc, string, string) {}

// Session owns the process-wide debugging state: the breakpoint store, the
// thread coordinator and the controller reference. It is created at debug
// session start and torn down on shutdown or program termination.
type Session struct {
	// ID identifies this debug session; reported in the banner.
	ID string

	cfg   *config.Config
	store *breakpoint.Store
	coord *Coordinator

	state atomic.Int32

	callTrace atomic.Bool

	mu         sync.Mutex
	controller Controller
	filters    map[int][]string
}

// NewSession creates an active session with an empty store and registry
// and a null controller.
func NewSession(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		ID:         uuid.New().String(),
		cfg:        cfg,
		store:      breakpoint.NewStore(),
		coord:      NewCoordinator(),
		controller: NullController{},
		filters: map[int][]string{
			types.ScopeLocal:  cfg.ScopeFilter(types.ScopeLocal),
			types.ScopeGlobal: cfg.ScopeFilter(types.ScopeGlobal),
		},
	}
	s.callTrace.Store(cfg.CallTrace)
	return s
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Store returns the shared breakpoint store.
func (s *Session) Store() *breakpoint.Store { return s.store }

// Coordinator returns the thread registry.
func (s *Session) Coordinator() *Coordinator { return s.coord }

// Controller returns the attached controller.
func (s *Session) Controller() Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

// SetController attaches the command surface. A nil controller installs
// the null object.
func (s *Session) SetController(c Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		c = NullController{}
	}
	s.controller = c
}

// State returns the session lifecycle state.
func (s *Session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

// Shutdown moves the session to ShuttingDown, wakes every parked thread so
// none is left blocked forever, and marks the session terminated. The
// tracer observes the state and stops halting; it is safe to call from any
// thread and is idempotent.
func (s *Session) Shutdown() {
	if !s.state.CompareAndSwap(int32(types.SessionActive), int32(types.SessionShuttingDown)) {
		return
	}
	s.coord.ResumeAll()
	s.state.Store(int32(types.SessionTerminated))
}

// ShouldSkip reports whether file belongs to the debugger's own support
// code. Halting is suppressed in such files, though call/return events in
// them still maintain the frame stack.
func (s *Session) ShouldSkip(file string) bool {
	if file == "" || strings.HasPrefix(file, "<") {
		return true
	}
	return s.cfg.ShouldSkip(file)
}

// CallTraceEnabled reports whether call/return tracing is on.
func (s *Session) CallTraceEnabled() bool { return s.callTrace.Load() }

// SetCallTrace toggles call/return tracing.
func (s *Session) SetCallTrace(on bool) { s.callTrace.Store(on) }

// Filter returns the variable name filter patterns for a scope.
func (s *Session) Filter(scope int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters[scope]
}

// SetFilter replaces the name filter patterns for a scope.
func (s *Session) SetFilter(scope int, patterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[scope] = patterns
}
