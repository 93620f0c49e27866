// Package types defines shared data types used across the debug engine.
//
// This package provides type definitions for:
//   - ThreadKey: opaque identity of a traced thread of execution
//   - EventKind: interpreter trace event kinds (line, call, return, raise)
//   - SessionState: debug session states (active, shutting down, terminated)
//   - ExceptionInfo / SourceLoc: exception reporting payloads
//   - Capability flags advertised to the controller
//
// These types are used throughout the codebase to maintain type safety
// and provide clear contracts between components.
package types

// ThreadKey identifies a traced thread of execution. The interpreter hook
// supplies it with every trace event; the engine never interprets its
// contents beyond equality.
type ThreadKey string

// MainThread is the conventional key of the program's main thread.
const MainThread ThreadKey = "MainThread"

// EventKind is the kind of an interpreter trace event.
type EventKind int

const (
	EventLine EventKind = iota
	EventCall
	EventReturn
	EventRaise
)

// String returns the protocol name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventCall:
		return "call"
	case EventReturn:
		return "return"
	case EventRaise:
		return "raise"
	}
	return "unknown"
}

// SessionState represents the lifecycle state of a debug session.
type SessionState int32

const (
	SessionActive SessionState = iota
	SessionShuttingDown
	SessionTerminated
)

// String returns a readable session state name.
func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionShuttingDown:
		return "shutting down"
	case SessionTerminated:
		return "terminated"
	}
	return "unknown"
}

// SourceLoc is a (file, line) source position.
type SourceLoc struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// ExceptionInfo describes a raised exception as reported to the controller.
// Frames are ordered most-recent-first and already filtered of debugger
// support code.
type ExceptionInfo struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Frames  []SourceLoc `json:"frames,omitempty"`
}

// Variable scopes used by the variable inspection commands.
const (
	ScopeLocal  = 0
	ScopeGlobal = 1
)

// Client capability flags, reported in response to a capabilities request.
const (
	HasDebugger    = 0x0001
	HasInterpreter = 0x0002
	HasCompleter   = 0x0004
	HasShell       = 0x0008
)

// AllCapabilities is the capability set of this engine.
const AllCapabilities = HasDebugger | HasInterpreter | HasCompleter | HasShell
