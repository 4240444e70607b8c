package check

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"strconv"

	"github.com/prometheus/procfs"
)

// tcpListen is the kernel socket state for LISTEN in /proc/net/tcp.
const tcpListen = 0x0A

// ProcfsInspector reads the kernel socket tables directly. Linux only.
type ProcfsInspector struct {
	// MountPoint overrides /proc, for tests.
	MountPoint string
}

// Listeners returns the LISTEN sockets on port from /proc/net/tcp and
// /proc/net/tcp6. A missing tcp6 table (IPv6 disabled) is not an error.
func (i *ProcfsInspector) Listeners(ctx context.Context, port int) ([]Listener, error) {
	mount := i.MountPoint
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	pfs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, &InspectError{Source: "procfs", Err: err}
	}

	tcp4, err := pfs.NetTCP()
	if err != nil {
		return nil, &InspectError{Source: "procfs", Err: err}
	}
	tcp6, err := pfs.NetTCP6()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &InspectError{Source: "procfs", Err: err}
	}

	var listeners []Listener
	for _, line := range append(tcp4, tcp6...) {
		if line.St != tcpListen || line.LocalPort != uint64(port) {
			continue
		}
		addr := net.JoinHostPort(line.LocalAddr.String(), strconv.FormatUint(line.LocalPort, 10))
		listeners = append(listeners, Listener{Addr: addr})
	}
	return listeners, nil
}
