package engine

import "github.com/calebgr/tracedbg/internal/eval"

// Frame is one entry of a thread's call stack, binding a source location
// to the evaluation context of that call.
type Frame struct {
	Ctx      eval.Context
	File     string
	Line     int
	Function string
}

// FrameStack is a thread's call stack built from trace events. Index 0 is
// the innermost (current) frame.
type FrameStack struct {
	// stored outermost-first so push/pop are appends
	frames []Frame
}

// Push appends a new innermost frame.
func (s *FrameStack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes the innermost frame. Popping an empty stack is a no-op.
func (s *FrameStack) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth returns the number of frames.
func (s *FrameStack) Depth() int {
	return len(s.frames)
}

// Top returns a pointer to the innermost frame, or nil if the stack is
// empty. The tracer mutates it on line events.
func (s *FrameStack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// At returns the frame at the given index counted from the innermost
// (0 = current), or nil if out of range.
func (s *FrameStack) At(i int) *Frame {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return &s.frames[len(s.frames)-1-i]
}

// All returns the frames innermost-first.
func (s *FrameStack) All() []Frame {
	out := make([]Frame, len(s.frames))
	for i := range s.frames {
		out[i] = s.frames[len(s.frames)-1-i]
	}
	return out
}
