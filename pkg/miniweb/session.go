package miniweb

import (
	"strings"
	"time"
)

// ioState tracks where a session sits in the read/dispatch/write cycle
// described in §5. A session never parses a second request while still
// writing the first reply — there is no pipelining.
type ioState int

const (
	ioFree ioState = iota // slot unused, available for a new accept
	ioReading
	ioWriting
	ioClosing
)

const (
	initialInBufferSize = 128
	maxInBufferSize     = 10240
)

// Session is one in-flight (or idle, keep-alive) connection. It owns the
// connection's file descriptor, its incremental parser state (§4.3), and
// the reply currently being built or drained (§4.5). The handler-facing
// methods below are the only surface a registered Handler sees; everything
// else is engine-internal bookkeeping, mirroring the way the teacher's
// http11.Connection keeps wire state private to the package and exposes a
// narrow request/response view to application code.
type Session struct {
	fd     int
	server *Server

	listenHeaders *ListenHeaderSet

	ioState ioState

	inBuffer      []byte
	inUsed        int
	parsePos      int
	tokenStart    int
	parserState   parserState
	startCaptured bool
	startTime     time.Time

	method   string
	fullURL  string
	protocol string
	wildcard string

	reqHeaders        requestHeaders
	curHeaderListened bool
	curHeaderName     string

	contentLength int
	contentRead   int
	content       []byte

	maxInSize int

	route *Route

	responseCode int
	replyHdrs     replyHeaders
	headerData    []byte
	headerSent    int

	body       []byte
	sharedBody []byte
	bodySent   int

	keepAlive bool

	lastActivity time.Time
	connectedAt  time.Time
}

// resetForAccept prepares a freshly accepted connection's slot. Called once
// per accept, never again until the connection closes.
func (s *Session) resetForAccept(fd int, server *Server, now time.Time) {
	s.fd = fd
	s.server = server
	s.listenHeaders = &server.listenHeaders
	s.ioState = ioReading

	initSize := server.config.InitialInBufferSize
	if initSize <= 0 {
		initSize = initialInBufferSize
	}
	s.maxInSize = server.config.MaxInBufferSize
	if s.maxInSize <= 0 {
		s.maxInSize = maxInBufferSize
	}

	if cap(s.inBuffer) == 0 {
		if initSize == initialInBufferSize {
			s.inBuffer = getInBuffer()
		} else {
			s.inBuffer = make([]byte, initSize)
		}
	}
	s.inUsed = 0
	s.parsePos = 0
	s.tokenStart = 0
	s.parserState = stateMethod
	s.startCaptured = false

	s.reqHeaders.reset()
	s.curHeaderListened = false
	s.curHeaderName = ""

	s.contentLength = -1
	s.contentRead = 0
	s.content = nil

	s.route = nil
	s.wildcard = ""

	s.responseCode = 0
	s.replyHdrs.reset()
	s.headerData = nil
	s.headerSent = 0
	s.body = s.body[:0]
	s.sharedBody = nil
	s.bodySent = 0

	s.keepAlive = false
	s.connectedAt = now
	s.lastActivity = now
}

// resetForNextRequest clears per-request state after a reply has fully
// flushed on a keep-alive connection, returning the session to ioReading.
// Any bytes already buffered past the end of the prior request (a pipelined
// next request) stay put; shiftInputBuffer already placed them at offset 0.
func (s *Session) resetForNextRequest() {
	s.reqHeaders.reset()
	s.curHeaderListened = false
	s.curHeaderName = ""
	s.contentLength = -1
	s.contentRead = 0
	s.content = nil
	s.route = nil
	s.wildcard = ""
	s.responseCode = 0
	s.replyHdrs.reset()
	s.headerData = nil
	s.headerSent = 0
	s.body = s.body[:0]
	s.sharedBody = nil
	s.bodySent = 0
	s.ioState = ioReading
}

// growInBuffer grows the input buffer per §4.3's ×1.5+1 policy, capped at
// maxInBufferSize. Returns false if the buffer is already at the cap and
// full — the caller should treat that as a hard header-too-big error.
func (s *Session) growInBuffer() bool {
	max := s.maxInSize
	if max <= 0 {
		max = maxInBufferSize
	}
	if len(s.inBuffer) >= max {
		return false
	}
	next := len(s.inBuffer)*3/2 + 1
	if next > max {
		next = max
	}
	grown := make([]byte, next)
	copy(grown, s.inBuffer[:s.inUsed])
	s.inBuffer = grown
	return true
}

// releaseBuffers returns the session's input buffer to the pool and drops
// references to request/reply buffers, called once the connection is
// fully closed (not on keep-alive reuse, which keeps the same buffer).
func (s *Session) releaseBuffers() {
	if s.inBuffer != nil {
		putInBuffer(s.inBuffer)
		s.inBuffer = nil
	}
	s.body = nil
	s.sharedBody = nil
	s.content = nil
	s.headerData = nil
}

// wantsClose reports whether the just-parsed request asked for the
// connection to close via "Connection: close" — honored even on HTTP/1.1,
// a supplemented feature beyond the base keep-alive/close split (see
// SPEC_FULL.md §5).
func (s *Session) wantsClose() bool {
	v, ok := s.reqHeaders.get("Connection")
	return ok && strings.EqualFold(v, "close")
}

// dispatch resolves the route for the just-parsed request, runs its
// handler, and hands the session off to the reply pipeline. Called from
// the parser the instant a request (headers plus any body) is complete.
func (s *Session) dispatch() {
	s.route = nil
	s.wildcard = ""
	if s.protocol == "HTTP/1.0" || s.protocol == "HTTP/1.1" {
		s.route, s.wildcard = s.server.registry.Resolve(s.method, s.fullURL)
	}

	s.responseCode = 500
	s.replyHdrs.reset()
	s.body = s.body[:0]
	s.sharedBody = nil
	s.bodySent = 0
	s.headerSent = 0

	if s.route != nil {
		s.route.Handler(s)
	} else {
		s.responseCode = 404
		s.Write([]byte("Page not found\n"))
	}

	s.keepAlive = s.protocol == "HTTP/1.1" && !s.wantsClose()
	s.prepareReply()
	s.ioState = ioWriting
}

// --- Handler-facing API (§4.4) ---

// Response sets the HTTP status code for the reply. Defaults to 500 if a
// handler runs but never calls Response; when no route matched, 404 is set
// automatically.
func (s *Session) Response(code int) {
	s.responseCode = code
}

// AddHeader adds or replaces a reply header. Order of first insertion is
// preserved on the wire.
func (s *Session) AddHeader(name, value string) {
	s.replyHdrs.set(name, value)
}

// Write appends b to the reply's owned body buffer, copying it. May coexist
// with a shared body set via SharedBody: the owned body is always written
// to the wire first, the shared body after it (§3, §4.5 step 5).
func (s *Session) Write(b []byte) {
	s.body = append(s.body, b...)
}

// SharedBody hands the engine a body buffer the handler owns and promises
// not to mutate until the reply has fully flushed. The engine never copies
// or frees it. May coexist with bytes already queued via Write; the shared
// body is written after the owned one.
func (s *Session) SharedBody(b []byte) {
	s.sharedBody = b
}

// GetHeader looks up a retained request header by exact name. Only headers
// named in the server's ListenHeaderSet are ever retained.
func (s *Session) GetHeader(name string) (string, bool) {
	return s.reqHeaders.get(name)
}

// ContentLength returns the parsed request Content-Length, or -1 if absent
// or not retained.
func (s *Session) ContentLength() int {
	return s.contentLength
}

// Content returns the request body bytes read so far (always complete by
// the time a handler runs).
func (s *Session) Content() []byte {
	return s.content
}

// Wildcard returns the substring a '*' pattern captured for this request,
// or "" for an exact-match route.
func (s *Session) Wildcard() string {
	return s.wildcard
}
