package cmd

import (
	"fmt"

	"github.com/grovetools/roster/pkg/daemon"
	"github.com/grovetools/roster/pkg/paths"
)

// newClient connects to the local daemon's API socket.
func newClient() (daemon.Client, error) {
	client, err := daemon.NewRemoteClient(paths.SocketPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon client: %w", err)
	}
	return client, nil
}

// requireDaemon connects and fails fast when the daemon is not answering.
func requireDaemon() (daemon.Client, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	if !client.IsRunning() {
		client.Close()
		return nil, fmt.Errorf("daemon is not running (start it with `roster daemon start`)")
	}
	return client, nil
}
