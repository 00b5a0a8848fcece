package miniweb

import (
	"time"

	"golang.org/x/sys/unix"
)

// noListenSlot is the sentinel stored in the poll-fd-to-session index for
// the entry that represents the listen socket rather than a Session.
const noListenSlot = -1

// Run starts the single-threaded event loop described in §4.6 and §5: it
// creates the listening socket, then repeatedly polls for readiness on the
// listen socket (gated on session count) and every active session,
// servicing whichever fds are ready before sweeping for timed-out
// sessions once a second. It blocks until Tidyup is called or an
// unrecoverable error occurs.
func (srv *Server) Run() error {
	fd, err := createListener(srv.config.Port, srv.config.ListenBacklog)
	if err != nil {
		srv.reportError(ErrListen, err)
		return err
	}
	srv.listenFd = fd
	defer unix.Close(fd)

	srv.sessions = make([]*Session, srv.config.MaxSessions)
	for i := range srv.sessions {
		srv.sessions[i] = &Session{ioState: ioFree}
	}
	srv.lastSweep = time.Now()
	srv.shutdown = false

	for !srv.shutdown {
		if err := srv.runOnce(); err != nil {
			return err
		}
	}
	return srv.drainOnShutdown()
}

// Tidyup requests that Run stop accepting new work and return after
// draining sessions already in flight. Safe to call from another
// goroutine.
func (srv *Server) Tidyup() {
	srv.shutdown = true
}

func (srv *Server) runOnce() error {
	fds, slots := srv.buildPollSet()

	n, err := unix.Poll(fds, 1000)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		srv.reportError(ErrSelect, err)
		return err
	}

	if n > 0 {
		for i, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			if slots[i] == noListenSlot {
				srv.acceptLoop()
				continue
			}
			srv.serviceSession(srv.sessions[slots[i]], pfd.Revents)
		}
	}

	if time.Since(srv.lastSweep) >= time.Second {
		srv.sweepTimeouts()
		srv.lastSweep = time.Now()
	}

	return nil
}

// buildPollSet produces the poll fd list and a parallel slice mapping each
// entry back to its session index (or noListenSlot for the listen socket).
func (srv *Server) buildPollSet() ([]unix.PollFd, []int) {
	fds := make([]unix.PollFd, 0, len(srv.sessions)+1)
	slots := make([]int, 0, len(srv.sessions)+1)

	if srv.activeCount() < srv.config.MaxSessions {
		fds = append(fds, unix.PollFd{Fd: int32(srv.listenFd), Events: unix.POLLIN})
		slots = append(slots, noListenSlot)
	}

	for i, s := range srv.sessions {
		switch s.ioState {
		case ioReading:
			fds = append(fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
			slots = append(slots, i)
		case ioWriting:
			fds = append(fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLOUT})
			slots = append(slots, i)
		}
	}

	return fds, slots
}

// acceptLoop drains every connection currently pending on the listen
// socket, assigning each to a free session slot found by linear scan
// (there is no sync.Pool here: the event loop is single-threaded, and the
// session table is small and fixed-size).
func (srv *Server) acceptLoop() {
	for {
		if srv.activeCount() >= srv.config.MaxSessions {
			return
		}

		fd, ok, err := acceptOne(srv.listenFd)
		if err != nil {
			srv.reportError(ErrAccept, err)
			return
		}
		if !ok {
			return
		}

		slot := srv.freeSlot()
		if slot == nil {
			unix.Close(fd)
			return
		}
		slot.resetForAccept(fd, srv, time.Now())
	}
}

func (srv *Server) freeSlot() *Session {
	for _, s := range srv.sessions {
		if s.ioState == ioFree {
			return s
		}
	}
	return nil
}

func (srv *Server) activeCount() int {
	n := 0
	for _, s := range srv.sessions {
		if s.ioState != ioFree {
			n++
		}
	}
	return n
}

func (srv *Server) serviceSession(s *Session, revents int16) {
	if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		srv.closeSession(s)
		return
	}

	switch s.ioState {
	case ioReading:
		srv.readSession(s)
	case ioWriting:
		srv.writeSession(s)
	}
}

func (srv *Server) readSession(s *Session) {
	if s.inUsed == len(s.inBuffer) {
		if !s.growInBuffer() {
			srv.reportError(ErrHeaderTooBig, s.fd)
			srv.closeSession(s)
			return
		}
	}

	n, wouldBlock, err := s.socketRead(s.inBuffer[s.inUsed:])
	if err != nil {
		srv.closeSession(s)
		return
	}
	if wouldBlock {
		return
	}
	if n == 0 {
		// Readable per poll, zero bytes, no error: the peer closed its
		// write side.
		srv.closeSession(s)
		return
	}

	s.inUsed += n
	s.lastActivity = time.Now()

	if err := s.feed(); err != nil {
		srv.closeSession(s)
	}
}

func (srv *Server) writeSession(s *Session) {
	done, err := s.flushReply()
	if err != nil {
		srv.closeSession(s)
		return
	}
	s.lastActivity = time.Now()
	if !done {
		return
	}
	if s.ioState == ioClosing {
		srv.closeSession(s)
	}
}

// sweepTimeouts runs once a second, closing sessions that have sat idle
// past the configured timeout for their current state: a connection
// waiting between keep-alive requests is held to FreeTimeoutSecs, one with
// a request already in flight to the tighter IdleTimeoutSecs.
func (srv *Server) sweepTimeouts() {
	now := time.Now()
	for _, s := range srv.sessions {
		if s.ioState == ioFree {
			continue
		}

		var limit time.Duration
		if s.ioState == ioReading && s.parsePos == 0 && s.inUsed == 0 {
			limit = time.Duration(srv.config.FreeTimeoutSecs) * time.Second
		} else {
			limit = time.Duration(srv.config.IdleTimeoutSecs) * time.Second
		}

		if now.Sub(s.lastActivity) > limit {
			srv.closeSession(s)
		}
	}
}

func (srv *Server) closeSession(s *Session) {
	if s.ioState == ioFree {
		return
	}
	if err := s.closeSocket(); err != nil {
		srv.reportError(ErrClose, s.fd)
	}
	s.releaseBuffers()
	s.ioState = ioFree
}

// drainOnShutdown gives sessions already writing a reply a bounded chance
// to flush before the listener and remaining sockets are torn down, then
// closes everything. A supplemented feature (SPEC_FULL.md §5): the base
// spec does not define graceful shutdown semantics.
func (srv *Server) drainOnShutdown() error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pending := false
		for _, s := range srv.sessions {
			if s.ioState == ioWriting {
				pending = true
				srv.writeSession(s)
			}
		}
		if !pending {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, s := range srv.sessions {
		if s.ioState != ioFree {
			srv.closeSession(s)
		}
	}
	return nil
}
