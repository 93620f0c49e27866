package protocol

import (
	"encoding/json"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-dap"
	"github.com/tidwall/gjson"

	"github.com/calebgr/tracedbg/internal/breakpoint"
	"github.com/calebgr/tracedbg/internal/engine"
	"github.com/calebgr/tracedbg/internal/errors"
	"github.com/calebgr/tracedbg/internal/eval"
	"github.com/calebgr/tracedbg/internal/version"
	"github.com/calebgr/tracedbg/pkg/types"
)

// Handler is the protocol state machine. It parses one inbound line at a
// time, mutates the engine accordingly and serializes responses. It
// implements engine.Controller: the tracer calls CommandLoop when a thread
// halts and Poll on line events while the program runs.
type Handler struct {
	session *engine.Session
	tr      *LineTransport

	// free-text evaluation buffer, accumulated until syntactically
	// complete
	buffer []string

	// pendingResponse is flushed by the >OK?< handshake; it turns into
	// >Continue< while the buffer is incomplete so the controller knows
	// to send more input.
	pendingResponse string

	// scratch evaluation context used when no traced frame exists
	scratchM *eval.Machine
	scratch  *eval.LuaContext
}

// NewHandler creates a protocol handler for a session over a transport.
func NewHandler(session *engine.Session, tr *LineTransport) *Handler {
	return &Handler{
		session:         session,
		tr:              tr,
		pendingResponse: ResponseOK,
	}
}

// Serve runs the outer command loop until shutdown or transport close.
// It is the engine's idle state while no thread is halted.
func (h *Handler) Serve() {
	for h.session.State() == types.SessionActive {
		line, err := h.tr.ReadLine()
		if err != nil {
			if errors.Is(err, errors.CodeLineTooLong) {
				h.writeError(errors.FromError(err))
				continue
			}
			h.teardown()
			return
		}
		h.handleLine(line)
	}
}

// CommandLoop blocks reading protocol lines on behalf of a halted thread
// until a stepping command releases it. Transport failure tears the
// session down so no thread is left parked forever.
func (h *Handler) CommandLoop(ec *engine.ExecutionContext) {
	for {
		line, err := h.tr.ReadLine()
		if err != nil {
			if errors.Is(err, errors.CodeLineTooLong) {
				h.writeError(errors.FromError(err))
				continue
			}
			h.teardown()
			return
		}
		if h.handleLine(line) {
			return
		}
	}
}

// Poll drains pending protocol lines without blocking, so breakpoint
// mutations arriving while the program runs take effect immediately.
func (h *Handler) Poll() {
	for {
		line, ok, closed := h.tr.TryReadLine()
		if closed {
			h.teardown()
			return
		}
		if !ok {
			return
		}
		h.handleLine(line)
	}
}

// teardown handles a dead transport: implicit resume-all via session
// shutdown, so other threads keep running rather than crash or hang.
func (h *Handler) teardown() {
	log.Printf("protocol: transport closed, ending debug session")
	h.session.Shutdown()
}

// handleLine processes one inbound line. The return value reports whether
// a command loop should hand control back to the tracer.
func (h *Handler) handleLine(line string) bool {
	token, arg, isCmd := ParseLine(line)
	if !isCmd {
		h.bufferInput(line)
		return false
	}

	if arg != "" && !gjson.Valid(arg) {
		h.writeError(errors.MalformedArgs(token, arg))
		return false
	}
	args := gjson.Parse(arg)

	switch token {
	case RequestStep:
		return h.stepCommand(func(ec *engine.ExecutionContext) { ec.Step() })
	case RequestStepOver:
		return h.stepCommand(func(ec *engine.ExecutionContext) { ec.StepOver() })
	case RequestStepOut:
		return h.stepCommand(func(ec *engine.ExecutionContext) { ec.StepOut() })
	case RequestContinue:
		special := args.Get("special").Bool()
		return h.stepCommand(func(ec *engine.ExecutionContext) { ec.Continue(special) })
	case RequestStepQuit:
		if h.session.Config().Passive {
			h.ReportExit(42)
		}
		h.session.Shutdown()
		return true

	case RequestOK:
		h.write(h.pendingResponse, nil)
		h.pendingResponse = ResponseOK

	case RequestBreak:
		h.breakCommand(args)
	case RequestBreakEnable:
		h.session.Store().EnableBreak(args.Get("file").String(), int(args.Get("line").Int()), args.Get("enable").Bool())
	case RequestBreakIgnore:
		h.session.Store().SetBreakIgnore(args.Get("file").String(), int(args.Get("line").Int()), int(args.Get("count").Int()))
	case RequestMethodBreak:
		h.methodBreakCommand(args)

	case RequestWatch:
		h.watchCommand(args)
	case RequestWatchEnable:
		h.session.Store().EnableWatch(args.Get("expression").String(), args.Get("enable").Bool())
	case RequestWatchIgnore:
		h.session.Store().SetWatchIgnore(args.Get("expression").String(), int(args.Get("count").Int()))

	case RequestVariables:
		h.variablesCommand(args)
	case RequestVariable:
		h.variableCommand(args)
	case RequestSetFilter:
		h.session.SetFilter(int(args.Get("scope").Int()), stringList(args.Get("patterns")))

	case RequestEval:
		h.evalCommand(args.Get("expression").String())
	case RequestExec:
		h.execCommand(args.Get("statement").String())

	case RequestThreadList:
		h.threadListCommand()
	case RequestThreadSet:
		h.threadSetCommand(int(args.Get("id").Int()))

	case RequestCallTrace:
		h.session.SetCallTrace(args.Get("on").Bool())

	case RequestCompletion:
		h.completionCommand(args.Get("text").String())
	case RequestBanner:
		h.bannerCommand()
	case RequestCapabilities:
		h.capabilitiesCommand(args)

	case RequestShutdown:
		h.session.Shutdown()
		h.tr.Close()
		return true

	default:
		h.writeError(errors.UnknownCommand(token))
	}
	return false
}

// stepCommand mutates the stepping mode of the last halted thread and
// exits the command loop so the tracer resumes execution.
func (h *Handler) stepCommand(apply func(*engine.ExecutionContext)) bool {
	if h.session.State() != types.SessionActive {
		h.writeError(errors.SessionTerminated())
		return true
	}
	ec := h.session.Coordinator().Current()
	if ec == nil {
		h.writeError(errors.NoThreads())
		return false
	}
	apply(ec)
	return true
}

func (h *Handler) breakCommand(args gjson.Result) {
	file := args.Get("file").String()
	line := int(args.Get("line").Int())

	if !args.Get("set").Bool() {
		h.session.Store().ClearBreak(file, line)
		return
	}

	if file == "" || line <= 0 {
		h.writeError(errors.BreakpointFailed(file, line, "a file and a positive line are required"))
		return
	}

	cond := args.Get("condition").String()
	if cond != "" {
		if err := eval.CheckExpr(cond); err != nil {
			h.write(ResponseBPConditionError, map[string]interface{}{
				"file":  file,
				"line":  line,
				"error": errors.ConditionSyntax(cond, err),
			})
			return
		}
	}
	h.session.Store().SetBreak(file, line, args.Get("temporary").Bool(), cond)
}

func (h *Handler) methodBreakCommand(args gjson.Result) {
	scope := args.Get("scope").String()
	name := args.Get("name").String()
	if args.Get("set").Bool() {
		h.session.Store().SetFuncBreak(scope, name, args.Get("temporary").Bool())
	} else {
		h.session.Store().ClearFuncBreak(scope, name)
	}
}

func (h *Handler) watchCommand(args gjson.Result) {
	expr := args.Get("expression").String()

	if !args.Get("set").Bool() {
		h.session.Store().ClearWatch(expr)
		return
	}

	if err := eval.CheckExpr(expr); err != nil {
		h.write(ResponseWPConditionError, map[string]interface{}{
			"expression": expr,
			"error":      errors.ConditionSyntax(expr, err),
		})
		return
	}

	mode := breakpoint.WatchAlways
	switch args.Get("mode").String() {
	case "created":
		mode = breakpoint.WatchCreated
	case "changed":
		mode = breakpoint.WatchChanged
	}
	h.session.Store().SetWatch(expr, mode, args.Get("temporary").Bool())
}

func (h *Handler) variablesCommand(args gjson.Result) {
	ec := h.session.Coordinator().Current()
	if ec == nil {
		h.writeError(errors.NoThreads())
		return
	}

	ec.SetFrameIndex(int(args.Get("frame").Int()))
	scope := int(args.Get("scope").Int())

	ctx := ec.EvalContext()
	if ctx == nil {
		h.write(ResponseVariables, []dap.Variable{})
		return
	}

	patterns := append(h.session.Filter(scope), stringList(args.Get("filter"))...)
	h.write(ResponseVariables, dapVariables(ctx.Variables(scope), patterns))
}

func (h *Handler) variableCommand(args gjson.Result) {
	ec := h.session.Coordinator().Current()
	if ec == nil {
		h.writeError(errors.NoThreads())
		return
	}

	ec.SetFrameIndex(int(args.Get("frame").Int()))
	scope := int(args.Get("scope").Int())

	ctx := ec.EvalContext()
	if ctx == nil {
		h.write(ResponseVariable, []dap.Variable{})
		return
	}

	path := args.Get("path").String()
	vars, err := ctx.Variable(path, scope)
	if err != nil {
		h.writeError(errors.EvaluationFailed(path, err))
		return
	}
	patterns := append(h.session.Filter(scope), stringList(args.Get("filter"))...)
	h.write(ResponseVariable, dapVariables(vars, patterns))
}

func (h *Handler) evalCommand(expr string) {
	v, err := h.evalContext().Eval(expr)
	if err != nil {
		h.write(ResponseException, eval.ErrorInfo(err))
		return
	}
	h.write(ResponseOK, map[string]interface{}{"result": v.Repr})
}

func (h *Handler) execCommand(stmt string) {
	if err := h.evalContext().Exec(stmt); err != nil {
		if loc, ok := eval.SyntaxLoc(err); ok {
			h.write(ResponseSyntax, loc)
			return
		}
		h.write(ResponseException, eval.ErrorInfo(err))
		return
	}
	h.write(ResponseOK, nil)
}

func (h *Handler) threadListCommand() {
	threads := h.session.Coordinator().Threads()
	list := make([]dap.Thread, 0, len(threads))
	for _, ec := range threads {
		list = append(list, dap.Thread{Id: ec.Num(), Name: string(ec.Key())})
	}

	current := 0
	if ec := h.session.Coordinator().Current(); ec != nil {
		current = ec.Num()
	}
	h.write(ResponseThreadList, map[string]interface{}{
		"current": current,
		"threads": list,
	})
}

func (h *Handler) threadSetCommand(id int) {
	ec, err := h.session.Coordinator().ByNumber(id)
	if err != nil {
		h.writeError(errors.FromError(err))
		return
	}
	h.session.Coordinator().SetCurrent(ec)
	h.write(ResponseThreadSet, map[string]interface{}{"id": id})
	h.write(ResponseStack, stackFrames(ec))
}

func (h *Handler) completionCommand(text string) {
	prefix := completionPrefix(text)
	words := h.evalContext().Complete(prefix)
	h.write(ResponseCompletion, map[string]interface{}{
		"words": words,
		"text":  text,
	})
}

// capabilitiesCommand reports the engine's feature set. A controller may
// state the minimum protocol version it needs; the response tells it
// whether this engine satisfies it.
func (h *Handler) capabilitiesCommand(args gjson.Result) {
	h.write(ResponseCapabilities, map[string]interface{}{
		"capabilities": types.AllCapabilities,
		"type":         "Lua",
		"protocol":     version.ProtocolVersion,
		"compatible":   version.AtLeast(version.ProtocolVersion, args.Get("protocol").String()),
	})
}

func (h *Handler) bannerCommand() {
	host, _ := os.Hostname()
	h.write(ResponseBanner, map[string]interface{}{
		"version":  version.GetVersion(),
		"protocol": version.ProtocolVersion,
		"engine":   "tracedbg (gopher-lua)",
		"session":  h.session.ID,
		"host":     host,
	})
}

// bufferInput accumulates free text until it forms a complete unit, then
// evaluates it in the current frame's context. Incomplete input arms the
// >Continue< pending response for the >OK?< handshake.
func (h *Handler) bufferInput(line string) {
	h.buffer = append(h.buffer, line)
	text := JoinBuffer(h.buffer)

	if !InputComplete(text) {
		h.pendingResponse = ResponseContinue
		return
	}

	h.buffer = nil
	h.pendingResponse = ResponseOK

	ctx := h.evalContext()
	if v, err := ctx.Eval(text); err == nil {
		h.write(ResponseOK, map[string]interface{}{"result": v.Repr})
		return
	} else if _, isSyntax := eval.SyntaxLoc(err); !isSyntax {
		h.write(ResponseException, eval.ErrorInfo(err))
		return
	}
	// not an expression; run it as statements
	if err := ctx.Exec(text); err != nil {
		if loc, ok := eval.SyntaxLoc(err); ok {
			h.write(ResponseSyntax, loc)
			return
		}
		h.write(ResponseException, eval.ErrorInfo(err))
		return
	}
	h.write(ResponseOK, nil)
}

// evalContext picks the evaluation context of the current frame, falling
// back to a scratch interpreter when no traced frame exists (before the
// program starts or after it terminated).
func (h *Handler) evalContext() eval.Context {
	if ec := h.session.Coordinator().Current(); ec != nil {
		if ctx := ec.EvalContext(); ctx != nil {
			return ctx
		}
	}
	if h.scratch == nil {
		h.scratchM = eval.NewMachine()
		h.scratch = h.scratchM.NewContext()
	}
	return h.scratch
}

// --- engine.Controller reporting ---

// ReportHalt emits the halt report: the stopped thread's frame stack,
// innermost first, truncated at dynamically-evaluated code.
func (h *Handler) ReportHalt(ec *engine.ExecutionContext) {
	h.write(ResponseLine, stackFrames(ec))
}

// ReportException emits an exception report. Syntax errors use their own
// token so controllers can jump straight to the offending position.
func (h *Handler) ReportException(info *types.ExceptionInfo) {
	if info.Type == "SyntaxError" && len(info.Frames) > 0 {
		h.write(ResponseSyntax, info.Frames[0])
		return
	}
	h.write(ResponseException, info)
}

// ReportExit emits the program-exit report.
func (h *Handler) ReportExit(status int) {
	h.write(ResponseExit, map[string]interface{}{"status": status})
}

// ClearedBreak notifies the controller that a temporary breakpoint fired
// and was removed.
func (h *Handler) ClearedBreak(file string, line int) {
	h.write(ResponseClearBreak, map[string]interface{}{"file": file, "line": line})
}

// ClearedWatch notifies the controller that a temporary watchpoint fired
// and was removed.
func (h *Handler) ClearedWatch(expression string) {
	h.write(ResponseClearWatch, map[string]interface{}{"expression": expression})
}

// CallTrace emits one call/return trace record.
func (h *Handler) CallTrace(event string, from, to types.SourceLoc, fromFn, toFn string) {
	h.write(ResponseCallTrace, map[string]interface{}{
		"event": event,
		"from":  map[string]interface{}{"file": from.File, "line": from.Line, "function": fromFn},
		"to":    map[string]interface{}{"file": to.File, "line": to.Line, "function": toFn},
	})
}

// --- encoding helpers ---

// write emits one response line: the token followed by the JSON-encoded
// body. Transport failures are logged; the session teardown happens on the
// read side.
func (h *Handler) write(token string, body interface{}) {
	line := token
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Printf("protocol: cannot encode %s body: %v", token, err)
			return
		}
		line += string(data)
	}
	if err := h.tr.WriteLine(line); err != nil {
		log.Printf("protocol: write failed: %v", err)
	}
}

func (h *Handler) writeError(de *errors.DebugError) {
	h.write(ResponseError, de)
}

// stackFrames renders a thread's stack as DAP stack frames, innermost
// first, truncated at the first frame belonging to dynamically-evaluated
// code.
func stackFrames(ec *engine.ExecutionContext) []dap.StackFrame {
	frames := ec.Frames().All()
	out := make([]dap.StackFrame, 0, len(frames))
	for i, f := range frames {
		if strings.HasPrefix(f.File, "<") {
			break
		}
		out = append(out, dap.StackFrame{
			Id:   i,
			Name: f.Function,
			Line: f.Line,
			Source: &dap.Source{
				Name: filepath.Base(f.File),
				Path: f.File,
			},
		})
	}
	return out
}

// dapVariables renders bindings as DAP variables, dropping names matched
// by the filter patterns.
func dapVariables(vars []eval.Variable, patterns []string) []dap.Variable {
	out := make([]dap.Variable, 0, len(vars))
	for _, v := range vars {
		if nameFiltered(v.Name, patterns) {
			continue
		}
		out = append(out, dap.Variable{
			Name:  v.Name,
			Value: v.Repr,
			Type:  v.Type,
		})
	}
	return out
}

// nameFiltered reports whether a name matches any filter pattern. Patterns
// use path.Match syntax; a malformed pattern never matches.
func nameFiltered(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func stringList(r gjson.Result) []string {
	var out []string
	for _, e := range r.Array() {
		out = append(out, e.String())
	}
	return out
}

// completionPrefix extracts the trailing identifier segment of the text
// being completed.
func completionPrefix(text string) string {
	i := len(text)
	for i > 0 && isIdentByte(text[i-1]) {
		i--
	}
	return text[i:]
}
