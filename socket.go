package nebula

import (
	"net"
	"time"
)

// applySocketOptions sets the options spec.md §6 requires on connect:
// TCP_NODELAY, linger=0, and, when enabled, OS-level keepalive with the
// configured idle time and a fixed 1000ms probe interval. The native
// net.TCPConn knobs cover every one of these directly; nothing in the
// example corpus reaches for a platform-specific socket library for this,
// so this stays on the standard library (see DESIGN.md).
func applySocketOptions(conn net.Conn, cfg config) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	if err := tc.SetLinger(0); err != nil {
		return err
	}
	if err := tc.SetKeepAlive(cfg.keepalive); err != nil {
		return err
	}
	if cfg.keepalive && cfg.keepaliveTime > 0 {
		if err := tc.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     cfg.keepaliveTime,
			Interval: 1000 * time.Millisecond,
		}); err != nil {
			return err
		}
	}
	return nil
}
