package miniweb

import "errors"

// ErrorKind identifies the category of an internal failure reported to the
// host via ErrorCallback. Mirrors the error kinds declared as sentinel
// errors.New values in the teacher engine (http11/errors.go), collapsed to
// the set spec'd for the host-facing API.
type ErrorKind int

const (
	ErrNoMem ErrorKind = iota
	ErrAccept
	ErrListen
	ErrSocket
	ErrBind
	ErrClose
	ErrHeaderTooBig
	ErrSelect
	ErrWrite
)

var errorKindText = map[ErrorKind]string{
	ErrNoMem:        "out of memory",
	ErrAccept:       "accept failed",
	ErrListen:       "listen failed",
	ErrSocket:       "socket create/configure failed",
	ErrBind:         "bind failed",
	ErrClose:        "close failed",
	ErrHeaderTooBig: "request header exceeded maximum size",
	ErrSelect:       "readiness poll failed",
	ErrWrite:        "write failed",
}

// ErrorText returns the human-readable string for an error kind. Unknown
// kinds return "unknown error".
func ErrorText(kind ErrorKind) string {
	if s, ok := errorKindText[kind]; ok {
		return s
	}
	return "unknown error"
}

// Parser sentinel errors. One per distinguishable parse failure, declared
// up front for zero-allocation error returns, exactly as the teacher's
// http11/errors.go declares ErrInvalidHeader, ErrHeadersTooLarge, etc.
var (
	errParseSyntax    = errors.New("miniweb: malformed request syntax")
	errHeaderTooLarge = errors.New("miniweb: request header exceeded maximum size")
)

// DebugLevel controls how much internal tracing the ambient logger emits.
// Does not affect LogCallback/ErrorCallback, which always fire regardless
// of debug level — those are the host's own observability hooks, not a
// diagnostic convenience.
type DebugLevel int

const (
	DebugNone DebugLevel = iota
	DebugErrors
	DebugData
	DebugAll
)

// LogCallback is invoked once per completed reply with the request URL,
// the HTTP status code sent, and the time spent handling the request.
type LogCallback func(url string, responseCode int, microseconds int64)

// ErrorCallback is invoked on internal (non-per-request) failures. context
// carries whatever detail is available (a file descriptor, a syscall
// errno, a URL) and may be nil.
type ErrorCallback func(kind ErrorKind, context any)
