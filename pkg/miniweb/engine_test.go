package miniweb

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestEngineEndToEndOverRealSocket drives the event loop's own runOnce
// against a real loopback TCP connection, exercising accept, the
// incremental parser, route dispatch, and the reply pipeline together —
// the same path Run loops on forever, minus the infinite loop.
func TestEngineEndToEndOverRealSocket(t *testing.T) {
	srv := NewServer(DefaultConfig())
	srv.config.MaxSessions = 4
	srv.RegisterPage("GET", "/ping", func(s *Session) {
		s.Response(200)
		s.Write([]byte("pong"))
	})

	fd, err := createListener(0, 16)
	if err != nil {
		t.Fatalf("createListener: %v", err)
	}
	defer unix.Close(fd)
	srv.listenFd = fd
	srv.sessions = make([]*Session, srv.config.MaxSessions)
	for i := range srv.sessions {
		srv.sessions[i] = &Session{ioState: ioFree}
	}
	srv.lastSweep = time.Now()

	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	addr, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("unexpected sockaddr type %T", sa)
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", addr.Port))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("Write request: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	sawActivity := false
	for time.Now().Before(deadline) {
		if err := srv.runOnce(); err != nil {
			t.Fatalf("runOnce: %v", err)
		}
		if srv.activeCount() > 0 {
			sawActivity = true
		} else if sawActivity {
			break
		}
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, _ := conn.Read(buf)
	out := string(buf[:n])

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line in reply: %q", out)
	}
	if !strings.HasSuffix(out, "pong") {
		t.Fatalf("expected body %q in reply: %q", "pong", out)
	}
}
