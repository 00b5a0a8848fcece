package miniweb

import (
	"strconv"
	"time"
)

// statusText mirrors the teacher's response.go status-line table
// (http11/response.go's getStatusLine/statusText), trimmed to the codes a
// miniweb handler plausibly sets.
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}

func reasonPhrase(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Unknown"
}

// prepareReply serializes the status line and headers for the reply
// currently staged on s (response code, handler-set headers, and body
// already written via Write/SharedBody) into s.headerData, ready to be
// drained by flushReply. Default headers a handler did not set itself are
// filled in here, set-if-absent so a handler's own value always wins:
// Server, Content-Type, Keep-Alive (HTTP/1.1 only). Content-Length is then
// always set to the owned plus shared body size, replacing any value the
// handler set — grounded on session_send_reply's default-header block
// (miniweb.c:614-618) and its Content-Length computation (miniweb.c:638).
func (s *Session) prepareReply() {
	bodyLen := len(s.body) + len(s.sharedBody)

	if !s.replyHdrs.has("Server") {
		s.replyHdrs.set("Server", "Miniweb/0.0.1 (Linux)")
	}
	if !s.replyHdrs.has("Content-Type") {
		s.replyHdrs.set("Content-Type", "text/html")
	}
	if s.protocol == "HTTP/1.1" && !s.replyHdrs.has("Keep-Alive") {
		s.replyHdrs.set("Keep-Alive", "timeout=10, max=1000")
	}
	s.replyHdrs.set("Content-Length", strconv.Itoa(bodyLen))

	protocol := s.protocol
	if protocol != "HTTP/1.0" && protocol != "HTTP/1.1" {
		protocol = "HTTP/1.1"
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, protocol...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(s.responseCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, reasonPhrase(s.responseCode)...)
	buf = append(buf, '\r', '\n')

	for _, h := range s.replyHdrs.entries {
		buf = append(buf, h.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')

	s.headerData = buf
	s.headerSent = 0
	s.bodySent = 0
}

// flushReply drains as much of the reply as the socket will currently
// accept. Returns done=true once the entire reply (headers + body) has
// been written and the session has been returned to ioReading (keep-alive)
// or moved to ioClosing. A nil error with done=false means the socket
// would block and the event loop should wait for the next writable
// readiness notification.
func (s *Session) flushReply() (done bool, err error) {
	if s.headerSent < len(s.headerData) {
		n, blocked, werr := s.socketWrite(s.headerData[s.headerSent:])
		s.headerSent += n
		if werr != nil {
			return false, werr
		}
		if blocked || s.headerSent < len(s.headerData) {
			return false, nil
		}
	}

	// Owned and shared bodies may coexist (§3); the owned body is drained
	// first, then the shared one, each tracked by its own offset — mirrors
	// the write sequence at miniweb.c:973-1018 (data, then shared_data).
	if s.bodySent < len(s.body) {
		n, blocked, werr := s.socketWrite(s.body[s.bodySent:])
		s.bodySent += n
		if werr != nil {
			return false, werr
		}
		if blocked || s.bodySent < len(s.body) {
			return false, nil
		}
	}

	sharedSent := s.bodySent - len(s.body)
	if sharedSent < len(s.sharedBody) {
		n, blocked, werr := s.socketWrite(s.sharedBody[sharedSent:])
		s.bodySent += n
		sharedSent += n
		if werr != nil {
			return false, werr
		}
		if blocked || sharedSent < len(s.sharedBody) {
			return false, nil
		}
	}

	s.completeReply(uint64(len(s.body) + len(s.sharedBody)))
	return true, nil
}

// completeReply records route metrics, fires the host's LogCallback, and
// either recycles the session for the next keep-alive request or marks it
// for closing.
func (s *Session) completeReply(bytesSent uint64) {
	elapsed := time.Since(s.startTime)

	if s.route != nil {
		s.route.recordCompletion(elapsed, bytesSent)
	}

	if s.server != nil && s.server.logCallback != nil {
		s.server.logCallback(s.fullURL, s.responseCode, elapsed.Microseconds())
	}

	if s.keepAlive {
		s.resetForNextRequest()
	} else {
		s.ioState = ioClosing
	}
}
