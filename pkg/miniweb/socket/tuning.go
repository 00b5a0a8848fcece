// Package socket applies TCP tuning to the raw, non-blocking file
// descriptors the event loop accepts and listens on. Adapted from the
// teacher's net.Conn/net.Listener-based tuning package: miniweb's event
// loop (§4.6) never hands out a net.Conn — sockets are created, accepted,
// read, and written directly via golang.org/x/sys/unix — so every option
// here is applied straight to an fd instead of extracted from one via
// SyscallConn.
package socket

import "golang.org/x/sys/unix"

// Config is socket tuning configuration. Zero value means "use system
// defaults" for every option except the booleans, which default false.
type Config struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY). Recommended for
	// request/response workloads like HTTP/1.x.
	NoDelay bool

	// RecvBuffer sets SO_RCVBUF in bytes. 0 leaves the system default.
	RecvBuffer int

	// SendBuffer sets SO_SNDBUF in bytes. 0 leaves the system default.
	SendBuffer int

	// DeferAccept sets TCP_DEFER_ACCEPT (Linux only): the kernel holds the
	// accept until data has arrived, so the event loop never wakes on an
	// empty connection.
	DeferAccept bool

	// KeepAlive enables SO_KEEPALIVE for long-idle sessions.
	KeepAlive bool
}

// DefaultConfig returns the tuning miniweb applies to every accepted
// connection: low-latency (NoDelay), modest buffers sized for small
// request/response pairs rather than bulk transfer, and keepalive enabled
// since sessions can sit idle between keep-alive requests.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  64 * 1024,
		SendBuffer:  64 * 1024,
		DeferAccept: true,
		KeepAlive:   true,
	}
}

// Apply applies connection-level tuning to an accepted, already
// non-blocking fd. Failures on non-critical options are ignored; a failure
// setting TCP_NODELAY is returned since it directly affects reply latency.
func Apply(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return err
		}
	}
	if cfg.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
	}
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}

	applyPlatformOptions(fd, cfg)
	return nil
}

// ApplyListener applies options that must be set on the listening socket
// before accept is ever called.
func ApplyListener(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return applyListenerOptions(fd, cfg)
}
