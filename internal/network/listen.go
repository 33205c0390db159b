package network

import (
	"net"
	"syscall"
	"time"
)

// ReuseAddrListenConfig returns a listen config that sets SO_REUSEADDR
// before binding, so a restarted server can rebind a port still in
// TIME_WAIT. Accepted TCP connections use keepAlive; zero keeps the
// platform default.
func ReuseAddrListenConfig(keepAlive time.Duration) net.ListenConfig {
	return net.ListenConfig{
		KeepAlive: keepAlive,
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				opErr = setReuseAddr(fd)
			}); err != nil {
				return err
			}
			return opErr
		},
	}
}
