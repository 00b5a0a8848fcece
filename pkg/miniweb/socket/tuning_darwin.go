//go:build darwin
// +build darwin

package socket

import "golang.org/x/sys/unix"

// TCP_KEEPALIVE is Darwin's equivalent of Linux's TCP_KEEPIDLE; the
// constant isn't exposed by golang.org/x/sys/unix under that name on this
// platform.
const tcpKeepAlive = 0x10

// applyPlatformOptions applies Darwin-specific per-connection options.
func applyPlatformOptions(fd int, cfg *Config) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpKeepAlive, 60)
	}
}

// applyListenerOptions is a no-op on Darwin: there is no TCP_DEFER_ACCEPT
// equivalent to set on the listening socket.
func applyListenerOptions(fd int, cfg *Config) error {
	return nil
}
