package engine

import "testing"

func pushFrames(ec *ExecutionContext, n int) {
	for i := 0; i < n; i++ {
		ec.Frames().Push(Frame{File: "a.lua", Line: 10 + i, Function: "f"})
	}
}

func TestStepHaltsAtNextLine(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 1)

	if ec.lineHalt() {
		t.Fatalf("halted with no stepping armed")
	}

	ec.Step()
	if !ec.lineHalt() {
		t.Fatalf("single step did not halt at the next line")
	}
}

func TestStepHaltsRegardlessOfDepth(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 1)

	ec.Step()
	pushFrames(ec, 1) // stepped into a call
	if !ec.lineHalt() {
		t.Errorf("single step did not halt inside the called function")
	}
}

func TestStepOverIgnoresDeeperLines(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 3)
	ec.StepOver()

	// recursion takes the stack down to depth 6
	halts := 0
	for depth := 4; depth <= 6; depth++ {
		pushFrames(ec, 1)
		if ec.lineHalt() {
			halts++
		}
	}
	// the calls return one by one
	for depth := 6; depth > 3; depth-- {
		ec.returnReached()
		ec.Frames().Pop()
	}
	// next line back at the original depth
	if ec.lineHalt() {
		halts++
	}

	if halts != 1 {
		t.Errorf("step-over produced %d halts, want exactly 1", halts)
	}
}

func TestStepOverReturnHaltsInCaller(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 2)
	ec.StepOver()

	// the stepped frame itself returns before its next line
	ec.returnReached()
	ec.Frames().Pop()

	if !ec.lineHalt() {
		t.Errorf("did not halt at the caller's next line after the frame returned")
	}
}

func TestStepOutRunsToCaller(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 3)
	ec.StepOut()

	// lines in the current frame no longer halt
	if ec.lineHalt() {
		t.Fatalf("step-out halted before the frame returned")
	}

	ec.returnReached()
	ec.Frames().Pop()
	if !ec.lineHalt() {
		t.Errorf("did not halt at the caller's next line")
	}
}

func TestContinueSpecialKeepsBarrier(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 2)
	ec.StepOut()
	ec.Continue(true)

	ec.returnReached()
	ec.Frames().Pop()
	if !ec.lineHalt() {
		t.Errorf("special continue lost the pending step-out")
	}
}

func TestContinueClearsStepping(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 2)
	ec.StepOut()
	ec.Continue(false)

	ec.returnReached()
	ec.Frames().Pop()
	if ec.lineHalt() {
		t.Errorf("plain continue kept the step barrier alive")
	}
}

func TestShallowerThanBarrierForcesHalt(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 3)
	ec.StepOver()

	// stack unwound past the barrier without a return event at barrier
	// depth, as after an exception
	ec.Frames().Pop()
	ec.Frames().Pop()

	if !ec.lineHalt() {
		t.Fatalf("did not halt once the stack shrank past the barrier")
	}
	// stepping state was consumed
	if ec.lineHalt() {
		t.Errorf("halted again without stepping re-armed")
	}
}

func TestSetFrameIndexClampsToInnermost(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	pushFrames(ec, 2)

	ec.SetFrameIndex(1)
	if ec.FrameIndex() != 1 {
		t.Errorf("valid frame index rejected")
	}

	ec.SetFrameIndex(5)
	if ec.FrameIndex() != 0 {
		t.Errorf("out-of-range frame index not clamped, got %d", ec.FrameIndex())
	}
	ec.SetFrameIndex(-1)
	if ec.FrameIndex() != 0 {
		t.Errorf("negative frame index not clamped, got %d", ec.FrameIndex())
	}
}

func TestFrameStackOrder(t *testing.T) {
	ec := newExecutionContext("T1", 1)
	ec.Frames().Push(Frame{Function: "outer"})
	ec.Frames().Push(Frame{Function: "inner"})

	all := ec.Frames().All()
	if len(all) != 2 || all[0].Function != "inner" || all[1].Function != "outer" {
		t.Errorf("All() not innermost-first: %+v", all)
	}
	if ec.Frames().At(0).Function != "inner" {
		t.Errorf("At(0) is not the innermost frame")
	}
	if ec.Frames().At(2) != nil {
		t.Errorf("At() out of range should be nil")
	}
}
