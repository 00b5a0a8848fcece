//go:build linux
// +build linux

package socket

import "golang.org/x/sys/unix"

// applyPlatformOptions applies Linux-specific per-connection options.
func applyPlatformOptions(fd int, cfg *Config) {
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
	}
}

// applyListenerOptions applies Linux-specific listener options.
func applyListenerOptions(fd int, cfg *Config) error {
	if !cfg.DeferAccept {
		return nil
	}
	// TCP_DEFER_ACCEPT: the value is a timeout in seconds before the
	// kernel gives up waiting for data and completes the accept anyway.
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5)
}
