//go:build !linux && !darwin

package eventsource

func peerCredUID(fd uintptr) (uint32, bool, error) {
	return 0, false, nil
}
