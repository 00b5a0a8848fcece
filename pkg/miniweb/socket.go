package miniweb

import (
	"golang.org/x/sys/unix"

	"github.com/hamsternz/miniweb/pkg/miniweb/socket"
)

// createListener opens, binds, and listens on a non-blocking IPv4 TCP
// socket for port. Tuning from socket.DefaultConfig() is applied before
// listen, matching the teacher's ApplyListener-before-Listen ordering.
func createListener(port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	if err := socket.ApplyListener(fd, socket.DefaultConfig()); err != nil {
		unix.Close(fd)
		return -1, err
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// acceptOne accepts a single pending connection on listenFd, returning
// ok=false (not an error) if none is currently pending (EAGAIN).
func acceptOne(listenFd int) (fd int, ok bool, err error) {
	nfd, _, aerr := unix.Accept(listenFd)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return -1, false, nil
		}
		return -1, false, aerr
	}

	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, false, err
	}
	if err := socket.Apply(nfd, socket.DefaultConfig()); err != nil {
		unix.Close(nfd)
		return -1, false, err
	}

	return nfd, true, nil
}

// socketRead reads into buf. wouldBlock reports EAGAIN/EWOULDBLOCK
// (nothing available right now); it is distinct from n==0,err==nil, which
// is a genuine EOF (peer closed its write side).
func (s *Session) socketRead(buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

// socketWrite writes b. wouldBlock reports EAGAIN/EWOULDBLOCK: the event
// loop should wait for the next writable-readiness notification and try
// again, rather than treating it as an error.
func (s *Session) socketWrite(b []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(s.fd, b)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

// closeSocket closes the session's file descriptor. Safe to call once per
// accepted connection.
func (s *Session) closeSocket() error {
	return unix.Close(s.fd)
}
