// Package interp drives a script under the trace engine. It is the
// in-process stand-in for an interpreter's trace hook: it executes the
// main chunk one top-level statement at a time and reports each step to
// the tracer, which applies stepping, breakpoints and watchpoints.
package interp

import (
	"log"
	"os"

	"github.com/calebgr/tracedbg/internal/engine"
	"github.com/calebgr/tracedbg/internal/eval"
	"github.com/calebgr/tracedbg/pkg/types"
)

// mainFunction names the implicit frame of a script's main chunk.
const mainFunction = "<module>"

// Driver executes a program under tracing and returns its exit status.
type Driver interface {
	RunScript(path string) int
}

// LuaDriver runs Lua scripts on a gopher-lua machine shared with the
// debugger's evaluation contexts, so evaluate/execute commands see the
// script's state.
type LuaDriver struct {
	session *engine.Session
	tracer  *engine.Tracer
	machine *eval.Machine
}

// NewLuaDriver creates a driver for the session.
func NewLuaDriver(session *engine.Session) *LuaDriver {
	return &LuaDriver{
		session: session,
		tracer:  engine.NewTracer(session),
		machine: eval.NewMachine(),
	}
}

// Machine returns the Lua machine scripts run on.
func (d *LuaDriver) Machine() *eval.Machine { return d.machine }

// RunScript loads and executes a script on the main thread, emitting trace
// events for every top-level statement. It reports program exit to the
// controller and returns the exit status.
func (d *LuaDriver) RunScript(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		log.Printf("interp: cannot read %s: %v", path, err)
		d.session.Controller().ReportExit(1)
		return 1
	}

	prog, err := eval.ParseProgram(src, path)
	if err != nil {
		d.session.Controller().ReportException(eval.ErrorInfo(err))
		d.session.Controller().ReportExit(1)
		return 1
	}

	ctx := d.machine.NewContext()
	d.tracer.OnEvent(engine.Event{
		Thread:   types.MainThread,
		Kind:     types.EventCall,
		File:     path,
		Line:     prog.Line(0),
		Function: mainFunction,
		Ctx:      ctx,
	})

	status := 0
	for i := 0; i < prog.Len(); i++ {
		if d.session.State() != types.SessionActive {
			break
		}

		d.tracer.OnEvent(engine.Event{
			Thread:   types.MainThread,
			Kind:     types.EventLine,
			File:     path,
			Line:     prog.Line(i),
			Function: mainFunction,
			Ctx:      ctx,
		})
		if d.session.State() != types.SessionActive {
			break
		}

		if err := ctx.RunStatement(prog, i); err != nil {
			info := eval.ErrorInfo(err)
			line := prog.Line(i)
			if len(info.Frames) > 0 {
				line = info.Frames[0].Line
			}
			d.tracer.OnEvent(engine.Event{
				Thread:   types.MainThread,
				Kind:     types.EventRaise,
				File:     path,
				Line:     line,
				Function: mainFunction,
				Ctx:      ctx,
				Exc:      info,
			})
			status = 1
			break
		}
	}

	d.tracer.OnEvent(engine.Event{
		Thread:   types.MainThread,
		Kind:     types.EventReturn,
		File:     path,
		Line:     prog.Line(prog.Len() - 1),
		Function: mainFunction,
		Ctx:      ctx,
	})
	d.tracer.ThreadDone(types.MainThread)
	d.session.Controller().ReportExit(status)
	return status
}
