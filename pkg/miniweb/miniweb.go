// Package miniweb is an embeddable HTTP/1.0 and HTTP/1.1 server core for
// low-resource environments: a single-threaded, non-blocking, readiness
// multiplexed event loop serving a small, host-registered set of routes.
// It deliberately does not spawn a goroutine per connection; see
// SPEC_FULL.md for the full design this package implements.
package miniweb

import (
	"fmt"
	"time"
)

// Config holds the tunables a host can set before calling Run. Mirrors the
// teacher's Config/DefaultConfig idiom (server.DefaultConfig()).
type Config struct {
	// Port is the TCP port Run listens on.
	Port int

	// MaxSessions bounds how many connections may be open at once. The
	// listen socket is excluded from the poll set whenever this many
	// sessions are active, applying backpressure instead of accepting
	// unboundedly.
	MaxSessions int

	// FreeTimeoutSecs is how long an idle, keep-alive connection (between
	// requests) may sit before the event loop closes it.
	FreeTimeoutSecs int

	// IdleTimeoutSecs is how long a connection with a request in progress
	// may go without forward progress before the event loop closes it.
	IdleTimeoutSecs int

	// ListenBacklog is the backlog argument passed to listen(2).
	ListenBacklog int

	// InitialInBufferSize is the size a new session's input buffer starts
	// at. 0 means the package default (128 bytes).
	InitialInBufferSize int

	// MaxInBufferSize caps how large the input buffer may grow while
	// parsing a single request's headers. 0 means the package default
	// (10240 bytes).
	MaxInBufferSize int
}

// DefaultConfig returns the tuning miniweb ships with: enough headroom for
// a handful of concurrent clients on hardware too small to spare a
// goroutine (and its stack) per connection.
func DefaultConfig() Config {
	return Config{
		Port:                8080,
		MaxSessions:         500,
		FreeTimeoutSecs:     15,
		IdleTimeoutSecs:     5,
		ListenBacklog:       100,
		InitialInBufferSize: initialInBufferSize,
		MaxInBufferSize:     maxInBufferSize,
	}
}

// Server is the host-facing handle: register routes and listened headers
// on it, then call Run to start serving. Not safe for concurrent use
// except where documented (Stats, Tidyup may be called from another
// goroutine while Run is active).
type Server struct {
	config Config

	registry      Registry
	listenHeaders ListenHeaderSet

	debugLevel    DebugLevel
	logCallback   LogCallback
	errorCallback ErrorCallback
	logger        *logger

	listenFd int
	sessions []*Session

	lastSweep time.Time
	shutdown  bool
}

// NewServer creates a Server with cfg. Always listens for the
// "Connection" request header so close-after-reply can be honored on
// HTTP/1.1 as well as HTTP/1.0 (see SPEC_FULL.md §5's supplemented
// feature).
func NewServer(cfg Config) *Server {
	srv := &Server{config: cfg}
	srv.listenHeaders.Listen("Connection")
	srv.logger = newLogger(cfg)
	return srv
}

// RegisterPage registers method/pattern with handler. pattern may contain
// at most one '*' wildcard. Registering a POST route implicitly listens
// for Content-Length.
func (srv *Server) RegisterPage(method, pattern string, handler Handler) *Route {
	return srv.registry.Register(method, pattern, handler, &srv.listenHeaders)
}

// ListenHeader opts the server into retaining a request header by exact
// name. Headers not listened for are discarded during parsing (§4.2).
func (srv *Server) ListenHeader(name string) {
	srv.listenHeaders.Listen(name)
}

// SetDebugLevel controls how much internal tracing the ambient logger
// emits. Independent of LogCallback/ErrorCallback.
func (srv *Server) SetDebugLevel(level DebugLevel) {
	srv.debugLevel = level
	srv.logger.setLevel(level)
}

// SetLogCallback installs the per-reply completion callback.
func (srv *Server) SetLogCallback(cb LogCallback) {
	srv.logCallback = cb
}

// SetErrorCallback installs the internal-failure callback.
func (srv *Server) SetErrorCallback(cb ErrorCallback) {
	srv.errorCallback = cb
}

// ErrorText returns the human-readable string for an ErrorKind.
func (srv *Server) ErrorText(kind ErrorKind) string {
	return ErrorText(kind)
}

// Stats renders a per-route text report: request count, average reply
// size, and cumulative handling time — the supplemented stats() operation
// from SPEC_FULL.md §5.
func (srv *Server) Stats() string {
	out := ""
	for _, route := range srv.registry.Routes() {
		count := route.RequestCount()
		avg := route.EWMABytesPerRequest()
		total := route.TotalTime()
		pattern := route.Prefix
		if route.Suffix != nil {
			pattern = route.Prefix + "*" + *route.Suffix
		}
		out += fmt.Sprintf("%-6s %-32s requests=%d avg_bytes=%d total_time=%s\n",
			route.Method, pattern, count, avg, total)
	}
	return out
}

func (srv *Server) reportError(kind ErrorKind, context any) {
	if srv.logger != nil {
		srv.logger.errorf("%s: %v", ErrorText(kind), context)
	}
	if srv.errorCallback != nil {
		srv.errorCallback(kind, context)
	}
}
