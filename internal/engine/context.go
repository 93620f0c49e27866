package engine

import (
	"github.com/calebgr/tracedbg/internal/eval"
	"github.com/calebgr/tracedbg/pkg/types"
)

// noStep is the stop-counter sentinel meaning "no pending single-step":
// the thread runs until a breakpoint or watchpoint fires.
const noStep = -1

// noBarrier means no step-over/step-out frame-depth threshold is active.
const noBarrier = -1

// ExecutionContext is the per-thread state machine of the debugger: the
// stepping mode, the frame stack and the suspend flag. One context exists
// per live traced thread, created lazily on the thread's first trace event.
//
// The stepping fields are only touched by the thread itself (from the
// tracer) and by the command loop while the thread is halted, so they need
// no locking. suspendRequested is guarded by the coordinator lock.
type ExecutionContext struct {
	key types.ThreadKey
	num int

	// stopCounter counts line events until the next automatic halt:
	// >0 keep running that many more steps, 0 halt now, noStep none.
	stopCounter int

	// stepBarrier is the frame-depth threshold of a step-over/step-out.
	// Line events deeper than it are ignored.
	stepBarrier int

	frames     FrameStack
	frameIndex int

	suspendRequested bool
}

func newExecutionContext(key types.ThreadKey, num int) *ExecutionContext {
	return &ExecutionContext{
		key:         key,
		num:         num,
		stopCounter: noStep,
		stepBarrier: noBarrier,
	}
}

// Key returns the thread key this context belongs to.
func (c *ExecutionContext) Key() types.ThreadKey { return c.key }

// Num returns the session-stable thread number (main thread is 1).
func (c *ExecutionContext) Num() int { return c.num }

// Frames exposes the thread's call stack.
func (c *ExecutionContext) Frames() *FrameStack { return &c.frames }

// FrameIndex returns which frame is current for evaluation (0 = innermost).
func (c *ExecutionContext) FrameIndex() int { return c.frameIndex }

// SetFrameIndex selects the frame used for evaluation. Out-of-range values
// are clamped to the innermost frame.
func (c *ExecutionContext) SetFrameIndex(i int) {
	if i < 0 || i >= c.frames.Depth() {
		i = 0
	}
	c.frameIndex = i
}

// CurrentFrame returns the frame selected by the frame index, or nil.
func (c *ExecutionContext) CurrentFrame() *Frame {
	return c.frames.At(c.frameIndex)
}

// EvalContext returns the evaluation context of the current frame, or nil
// when the thread has no frames.
func (c *ExecutionContext) EvalContext() eval.Context {
	if f := c.CurrentFrame(); f != nil {
		return f.Ctx
	}
	return nil
}

// Step arms a single step: halt at the next line event regardless of depth.
func (c *ExecutionContext) Step() {
	c.stopCounter = 1
	c.stepBarrier = noBarrier
}

// StepOver arms a step at the current frame depth: line events inside
// deeper calls are ignored until the stack shrinks back.
func (c *ExecutionContext) StepOver() {
	c.stopCounter = 1
	c.stepBarrier = c.frames.Depth()
}

// StepOut runs until the current frame returns; the first line event in
// the caller halts.
func (c *ExecutionContext) StepOut() {
	c.stopCounter = noStep
	c.stepBarrier = c.frames.Depth()
}

// Continue resumes the thread, stopping only at breakpoints. A special
// continue keeps the active step barrier so a pending step-out still
// completes.
func (c *ExecutionContext) Continue(special bool) {
	c.stopCounter = noStep
	if !special {
		c.stepBarrier = noBarrier
	}
}

// clearStepping resets all stepping state after a halt.
func (c *ExecutionContext) clearStepping() {
	c.stopCounter = noStep
	c.stepBarrier = noBarrier
}

// lineHalt applies the stepping-mode decrement rule for a line event at
// the current frame depth and reports whether the thread must halt.
//
// If no barrier is active or the depth equals the barrier, the stop
// counter is decremented (clamped at the noStep sentinel) and the thread
// halts when it reaches zero. A depth below the barrier means the stepped
// over call returned past the originating frame: halt immediately so the
// catch-up line is not skipped. Deeper events are still inside the stepped
// over call and are ignored.
func (c *ExecutionContext) lineHalt() bool {
	depth := c.frames.Depth()

	if c.stepBarrier == noBarrier || depth == c.stepBarrier {
		if c.stopCounter > noStep {
			c.stopCounter--
		}
		if c.stopCounter < noStep {
			c.stopCounter = noStep
		}
	} else if depth < c.stepBarrier {
		c.clearStepping()
		return true
	}

	return c.stopCounter == 0
}

// returnReached handles a return/end event at the current depth: when the
// returning frame sits at the barrier depth, a one-shot halt is armed so
// the caller's next line event stops. The caller pops the frame afterwards.
func (c *ExecutionContext) returnReached() {
	if c.stepBarrier != noBarrier && c.frames.Depth() == c.stepBarrier {
		c.stopCounter = 1
		c.stepBarrier = noBarrier
	}
}
