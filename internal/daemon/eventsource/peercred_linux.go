//go:build linux

package eventsource

import "golang.org/x/sys/unix"

func peerCredUID(fd uintptr) (uint32, bool, error) {
	creds, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return 0, true, err
	}
	return creds.Uid, true, nil
}
