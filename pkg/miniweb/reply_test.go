package miniweb

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

// socketPairSession creates a connected fd pair and returns a Session
// wired to one end, plus the raw fd of the other end for the test to read
// from directly — exercising the real socketWrite path rather than a fake.
func socketPairSession(t *testing.T, srv *Server) (*Session, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})

	s := newTestSession(srv)
	s.fd = fds[0]
	return s, fds[1]
}

func readAll(t *testing.T, fd int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if n == 0 || err != nil {
			break
		}
		if n < len(buf) {
			break
		}
	}
	return out
}

func TestFlushReplyWritesStatusLineHeadersAndBody(t *testing.T) {
	srv := &Server{}
	s, peerFd := socketPairSession(t, srv)

	s.protocol = "HTTP/1.1"
	s.method = "GET"
	s.keepAlive = false
	s.responseCode = 200
	s.Write([]byte("hello"))
	s.prepareReply()

	done, err := s.flushReply()
	if err != nil {
		t.Fatalf("flushReply: %v", err)
	}
	if !done {
		t.Fatalf("expected flushReply to complete in one pass on a socketpair")
	}

	out := string(readAll(t, peerFd))
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("missing/incorrect status line in %q", out)
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Errorf("missing Content-Length header in %q", out)
	}
	if !strings.Contains(out, "Server: Miniweb/0.0.1 (Linux)\r\n") {
		t.Errorf("missing default Server header in %q", out)
	}
	if !strings.Contains(out, "Content-Type: text/html\r\n") {
		t.Errorf("missing default Content-Type header in %q", out)
	}
	if !strings.Contains(out, "Keep-Alive: timeout=10, max=1000\r\n") {
		t.Errorf("missing default Keep-Alive header on HTTP/1.1 in %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Errorf("missing body after header terminator in %q", out)
	}
}

func TestFlushReplyHonorsHandlerSetHeaders(t *testing.T) {
	srv := &Server{}
	s, peerFd := socketPairSession(t, srv)

	s.protocol = "HTTP/1.0"
	s.keepAlive = false
	s.responseCode = 404
	s.AddHeader("Content-Type", "text/plain")
	s.prepareReply()

	if _, err := s.flushReply(); err != nil {
		t.Fatalf("flushReply: %v", err)
	}

	out := string(readAll(t, peerFd))
	if !strings.HasPrefix(out, "HTTP/1.0 404 Not Found\r\n") {
		t.Errorf("unexpected status line in %q", out)
	}
	if !strings.Contains(out, "Content-Type: text/plain\r\n") {
		t.Errorf("missing handler-set header in %q", out)
	}
}

func TestFlushReplyUsesSharedBodyWithoutCopy(t *testing.T) {
	srv := &Server{}
	s, peerFd := socketPairSession(t, srv)

	shared := []byte("borrowed-bytes")
	s.protocol = "HTTP/1.1"
	s.keepAlive = false
	s.responseCode = 200
	s.SharedBody(shared)
	s.prepareReply()

	if &s.sharedBody[0] != &shared[0] {
		t.Errorf("expected SharedBody to keep the caller's slice, not a copy")
	}

	if _, err := s.flushReply(); err != nil {
		t.Fatalf("flushReply: %v", err)
	}

	out := string(readAll(t, peerFd))
	if !strings.HasSuffix(out, "borrowed-bytes") {
		t.Errorf("expected shared body bytes on the wire, got %q", out)
	}
}

func TestFlushReplyWritesOwnedBodyThenSharedBody(t *testing.T) {
	srv := &Server{}
	s, peerFd := socketPairSession(t, srv)

	s.protocol = "HTTP/1.1"
	s.keepAlive = false
	s.responseCode = 200
	s.Write([]byte("owned-"))
	s.SharedBody([]byte("shared"))
	s.prepareReply()

	if !strings.Contains(string(s.headerData), "Content-Length: 12\r\n") {
		t.Errorf("expected Content-Length to sum owned and shared body, got %q", s.headerData)
	}

	if _, err := s.flushReply(); err != nil {
		t.Fatalf("flushReply: %v", err)
	}

	out := string(readAll(t, peerFd))
	if !strings.HasSuffix(out, "owned-shared") {
		t.Errorf("expected owned body then shared body on the wire, got %q", out)
	}
}

func TestPrepareReplyDefaultHeadersSetIfAbsent(t *testing.T) {
	srv := &Server{}
	s := newTestSession(srv)
	s.protocol = "HTTP/1.1"
	s.keepAlive = true
	s.responseCode = 200
	s.AddHeader("Server", "custom-server")
	s.prepareReply()

	out := string(s.headerData)
	if !strings.Contains(out, "Server: custom-server\r\n") {
		t.Errorf("expected handler-set Server header to win, got %q", out)
	}
	if !strings.Contains(out, "Content-Type: text/html\r\n") {
		t.Errorf("expected default Content-Type, got %q", out)
	}
	if !strings.Contains(out, "Keep-Alive: timeout=10, max=1000\r\n") {
		t.Errorf("expected default Keep-Alive on HTTP/1.1, got %q", out)
	}
	if strings.Contains(out, "Connection:") {
		t.Errorf("did not expect a Connection header, got %q", out)
	}
}

func TestPrepareReplyOmitsKeepAliveOnHTTP10(t *testing.T) {
	srv := &Server{}
	s := newTestSession(srv)
	s.protocol = "HTTP/1.0"
	s.keepAlive = false
	s.responseCode = 200
	s.prepareReply()

	if strings.Contains(string(s.headerData), "Keep-Alive:") {
		t.Errorf("did not expect a Keep-Alive header on HTTP/1.0, got %q", s.headerData)
	}
}
