// Package protocol implements the line-oriented command protocol between
// the debug engine and its controller.
//
// Every message occupies one newline-terminated line. Requests start with
// a `>Token<` command token, immediately followed by a JSON argument
// object; anything else is free text accumulated into the evaluation
// buffer. Responses mirror the same shape: a response token followed by a
// JSON body.
package protocol

import "strings"

// Request tokens accepted from the controller.
const (
	RequestStep         = ">Step<"
	RequestStepOver     = ">StepOver<"
	RequestStepOut      = ">StepOut<"
	RequestStepQuit     = ">StepQuit<"
	RequestContinue     = ">Continue<"
	RequestOK           = ">OK?<"
	RequestBreak        = ">Break<"
	RequestBreakEnable  = ">EnableBreak<"
	RequestBreakIgnore  = ">IgnoreBreak<"
	RequestMethodBreak  = ">MethodBreak<"
	RequestWatch        = ">Watch<"
	RequestWatchEnable  = ">EnableWatch<"
	RequestWatchIgnore  = ">IgnoreWatch<"
	RequestVariables    = ">Variables<"
	RequestVariable     = ">Variable<"
	RequestEval         = ">Eval<"
	RequestExec         = ">Exec<"
	RequestSetFilter    = ">SetFilter<"
	RequestThreadList   = ">ThreadList<"
	RequestThreadSet    = ">ThreadSet<"
	RequestCallTrace    = ">CallTrace<"
	RequestCompletion   = ">Completion<"
	RequestBanner       = ">Banner<"
	RequestCapabilities = ">Capabilities<"
	RequestShutdown     = ">Shutdown<"
)

// Response tokens emitted to the controller.
const (
	ResponseOK               = ">OK<"
	ResponseContinue         = ">Continue<"
	ResponseLine             = ">Line<"
	ResponseStack            = ">Stack<"
	ResponseException        = ">Exception<"
	ResponseSyntax           = ">SyntaxError<"
	ResponseClearBreak       = ">ClearBreak<"
	ResponseClearWatch       = ">ClearWatch<"
	ResponseBPConditionError = ">BPConditionError<"
	ResponseWPConditionError = ">WPConditionError<"
	ResponseVariables        = ">Variables<"
	ResponseVariable         = ">Variable<"
	ResponseThreadList       = ">ThreadList<"
	ResponseThreadSet        = ">ThreadSet<"
	ResponseCompletion       = ">Completion<"
	ResponseBanner           = ">Banner<"
	ResponseCapabilities     = ">Capabilities<"
	ResponseCallTrace        = ">CallTrace<"
	ResponseExit             = ">Exit<"
	ResponseError            = ">Error<"
)

// ParseLine splits a protocol line into its command token and argument
// text. ok is false for free text lines, which belong to the evaluation
// buffer instead.
func ParseLine(line string) (token, arg string, ok bool) {
	if len(line) == 0 || line[0] != '>' {
		return "", "", false
	}
	end := strings.IndexByte(line, '<')
	if end < 0 {
		return "", "", false
	}
	return line[:end+1], line[end+1:], true
}
