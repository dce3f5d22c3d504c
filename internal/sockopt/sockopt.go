// Package sockopt applies best-effort socket tuning to the server's UDP
// listener by reaching past net.UDPConn to the underlying file descriptor,
// the same way runZeroInc-sockstats's pkg/tcpinfo reaches past net.Conn to
// read TCP_INFO — that package targets TCP internals, this one targets UDP
// buffer sizing and address reuse, but the pattern (use SyscallConn to get
// at the raw fd, then golang.org/x/sys/unix to call setsockopt) is the same.
package sockopt

import (
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Tuning holds the socket buffer sizes to request. A zero value leaves the
// OS default alone for that buffer.
type Tuning struct {
	RecvBufferBytes int
	SendBufferBytes int
}

// DefaultTuning widens both buffers past the typical 208KiB Linux default,
// sized for a few hundred in-flight 1400-byte client packets.
func DefaultTuning() Tuning {
	return Tuning{RecvBufferBytes: 1 << 20, SendBufferBytes: 1 << 20}
}

// Apply sets SO_REUSEADDR and, when non-zero, widens SO_RCVBUF/SO_SNDBUF on
// conn's underlying file descriptor. Every step is best-effort: a failure
// is logged at warn level and does not prevent the server from serving on
// the socket it already has, since a constrained or sandboxed environment
// may reject these calls even though the bind itself succeeded.
func Apply(conn *net.UDPConn, t Tuning, log *logrus.Entry) {
	raw, err := conn.SyscallConn()
	if err != nil {
		log.WithError(err).Warn("sockopt: could not obtain raw connection")
		return
	}

	setOpt := func(level, opt, value int, name string) {
		var ctrlErr error
		err := raw.Control(func(fd uintptr) {
			ctrlErr = unix.SetsockoptInt(int(fd), level, opt, value)
		})
		if err != nil {
			log.WithError(err).Warnf("sockopt: control failed setting %s", name)
			return
		}
		if ctrlErr != nil && !errors.Is(ctrlErr, unix.ENOPROTOOPT) {
			log.WithError(ctrlErr).Warnf("sockopt: setsockopt %s failed", name)
		}
	}

	setOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, 1, "SO_REUSEADDR")
	if t.RecvBufferBytes > 0 {
		setOpt(unix.SOL_SOCKET, unix.SO_RCVBUF, t.RecvBufferBytes, "SO_RCVBUF")
	}
	if t.SendBufferBytes > 0 {
		setOpt(unix.SOL_SOCKET, unix.SO_SNDBUF, t.SendBufferBytes, "SO_SNDBUF")
	}
}

// Buffers reads back the kernel's actual SO_RCVBUF/SO_SNDBUF sizes, which
// the kernel may have clamped or doubled relative to what Apply requested
// (Linux doubles the requested value to account for bookkeeping overhead).
func Buffers(conn *net.UDPConn) (recvBytes, sendBytes int, err error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, 0, fmt.Errorf("sockopt: raw connection: %w", err)
	}
	var getErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		recvBytes, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
		if getErr != nil {
			return
		}
		sendBytes, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
	})
	if ctrlErr != nil {
		return 0, 0, fmt.Errorf("sockopt: control: %w", ctrlErr)
	}
	if getErr != nil {
		return 0, 0, fmt.Errorf("sockopt: getsockopt: %w", getErr)
	}
	return recvBytes, sendBytes, nil
}
