// Package engine implements the execution tracer of the debugger: the
// per-thread call-stack model, the stepping state machine, the cooperative
// suspend/resume coordinator and the session object tying them together.
//
// The interpreter hook delivers one Event per executed line, call, return
// or raise, synchronously on the thread being traced. The tracer updates
// the thread's frame stack, applies the stepping rules and the breakpoint
// and watchpoint checks, and on a halt suspends every other thread and
// hands control to the session's controller until a stepping command
// releases the thread again.
package engine

import (
	"github.com/calebgr/tracedbg/internal/eval"
	"github.com/calebgr/tracedbg/pkg/types"
)

// Event is one interpreter trace notification. Ctx is the evaluation
// context of the frame the event occurred in; Exc is set for raise events.
type Event struct {
	Thread   types.ThreadKey
	Kind     types.EventKind
	File     string
	Line     int
	Function string
	Ctx      eval.Context
	Exc      *types.ExceptionInfo
}

// Tracer consumes trace events for a session.
type Tracer struct {
	session *Session
}

// NewTracer creates a tracer bound to a session.
func NewTracer(s *Session) *Tracer {
	return &Tracer{session: s}
}

// Session returns the owning session.
func (t *Tracer) Session() *Session { return t.session }

// OnEvent is the trace callback. It must be invoked synchronously on the
// thread the event belongs to. The tracer never re-enters itself: nothing
// it calls emits further trace events.
func (t *Tracer) OnEvent(ev Event) {
	if t.session.State() != types.SessionActive {
		return
	}

	ec := t.session.Coordinator().Context(ev.Thread)

	switch ev.Kind {
	case types.EventCall:
		t.onCall(ec, ev)
	case types.EventLine:
		t.onLine(ec, ev)
	case types.EventReturn:
		t.onReturn(ec, ev)
	case types.EventRaise:
		t.onRaise(ec, ev)
	}
}

// ThreadDone tells the tracer a traced thread has terminated.
func (t *Tracer) ThreadDone(key types.ThreadKey) {
	t.session.Coordinator().Drop(key)
}

func (t *Tracer) onCall(ec *ExecutionContext, ev Event) {
	t.session.Coordinator().Checkpoint(ec)

	if t.session.CallTraceEnabled() {
		t.emitCallTrace("call", ec, ev)
	}

	// The frame stack is maintained even for skipped files so it stays
	// accurate while support code runs.
	ec.Frames().Push(Frame{Ctx: ev.Ctx, File: ev.File, Line: ev.Line, Function: ev.Function})

	if t.session.ShouldSkip(ev.File) {
		return
	}

	if t.session.Store().CheckFunc(ev.File, ev.Function, t.session.Controller()) {
		t.halt(ec)
	}
}

func (t *Tracer) onLine(ec *ExecutionContext, ev Event) {
	// Give the controller a chance to push through new breakpoints while
	// the program is running.
	t.session.Controller().Poll()

	t.session.Coordinator().Checkpoint(ec)

	if ec.Frames().Depth() == 0 {
		ec.Frames().Push(Frame{Ctx: ev.Ctx, File: ev.File, Line: ev.Line, Function: ev.Function})
	} else {
		top := ec.Frames().Top()
		top.File = ev.File
		top.Line = ev.Line
		if ev.Ctx != nil {
			top.Ctx = ev.Ctx
		}
	}

	if ev.Line == 0 || t.session.ShouldSkip(ev.File) {
		return
	}

	halt := ec.lineHalt()

	if !halt {
		frameCtx := ec.Frames().Top().Ctx
		if frameCtx != nil {
			store := t.session.Store()
			notify := t.session.Controller()
			halt = store.CheckLine(ev.File, ev.Line, frameCtx, notify) ||
				store.CheckWatches(ec.Frames().Depth(), frameCtx, notify)
		}
	}

	if halt {
		t.halt(ec)
	}
}

func (t *Tracer) onReturn(ec *ExecutionContext, ev Event) {
	if t.session.CallTraceEnabled() {
		t.emitCallTrace("return", ec, ev)
	}

	ec.returnReached()
	ec.Frames().Pop()
}

// onRaise reports the exception and hands control to the controller at the
// throw point, before the stack unwinds. Raise events are never skipped,
// even in debugger support files.
func (t *Tracer) onRaise(ec *ExecutionContext, ev Event) {
	ec.clearStepping()

	if top := ec.Frames().Top(); top != nil {
		top.File = ev.File
		top.Line = ev.Line
	}

	info := ev.Exc
	if info == nil {
		info = &types.ExceptionInfo{Type: "Error", Message: "unknown exception"}
	}

	ec.SetFrameIndex(0)
	coord := t.session.Coordinator()
	coord.AcquireHalt(ec)
	if t.session.State() != types.SessionActive {
		coord.ReleaseHalt(ec)
		return
	}
	coord.SetCurrent(ec)

	t.session.Controller().ReportException(info)
	t.session.Controller().CommandLoop(ec)
	coord.ReleaseHalt(ec)
}

// halt stops the calling thread: halt ownership is acquired first, which
// suspends every other thread and parks the caller while another halted
// thread still runs the command loop. The owner emits the halt report and
// runs the controller's command loop until a stepping command arrives,
// after which all threads resume. A session shut down while the caller
// waited is not reported.
func (t *Tracer) halt(ec *ExecutionContext) {
	ec.clearStepping()
	ec.SetFrameIndex(0)

	coord := t.session.Coordinator()
	coord.AcquireHalt(ec)
	if t.session.State() != types.SessionActive {
		coord.ReleaseHalt(ec)
		return
	}
	coord.SetCurrent(ec)

	t.session.Controller().ReportHalt(ec)
	t.session.Controller().CommandLoop(ec)
	coord.ReleaseHalt(ec)
}

// emitCallTrace reports a call ("current frame -> callee") or a return
// ("returning frame -> caller"). Records touching skipped files are
// dropped.
func (t *Tracer) emitCallTrace(event string, ec *ExecutionContext, ev Event) {
	frameLoc := func(f *Frame) (types.SourceLoc, string) {
		if f == nil {
			return types.SourceLoc{}, ""
		}
		return types.SourceLoc{File: f.File, Line: f.Line}, f.Function
	}

	from, fromFn := frameLoc(ec.Frames().Top())
	to := types.SourceLoc{File: ev.File, Line: ev.Line}
	toFn := ev.Function
	if event == "return" {
		from, fromFn = to, toFn
		to, toFn = frameLoc(ec.Frames().At(1))
	}

	if t.session.ShouldSkip(from.File) || t.session.ShouldSkip(to.File) {
		return
	}
	t.session.Controller().CallTrace(event, from, to, fromFn, toFn)
}
