//go:build darwin

package eventsource

import "golang.org/x/sys/unix"

func peerCredUID(fd uintptr) (uint32, bool, error) {
	creds, err := unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
	if err != nil {
		return 0, true, err
	}
	return creds.Uid, true, nil
}
