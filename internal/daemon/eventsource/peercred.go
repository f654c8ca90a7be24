package eventsource

import (
	"fmt"
	"net"
	"os"
)

// verifyPeer rejects connections from other users. The socket mode
// already restricts access, but the check also covers sockets exposed
// through permissive parent directories.
func verifyPeer(conn net.Conn) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("event socket requires a unix connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("peer syscall conn: %w", err)
	}

	var (
		peerUID   uint32
		supported bool
		credErr   error
	)
	if err := raw.Control(func(fd uintptr) {
		peerUID, supported, credErr = peerCredUID(fd)
	}); err != nil {
		return fmt.Errorf("peer control: %w", err)
	}
	if credErr != nil {
		return fmt.Errorf("peer credentials: %w", credErr)
	}
	if !supported {
		return nil
	}

	if peerUID != uint32(os.Getuid()) {
		return fmt.Errorf("peer uid %d does not match owner", peerUID)
	}
	return nil
}
