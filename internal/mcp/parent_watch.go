package mcp

import (
	"context"
	"os"
	"time"

	"flightcheck/internal/logging"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent cancels the server when the parent process exits, so a stdio
// server left behind by its client shuts down. It never reads stdin, which
// belongs to the transport.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(ParentPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "ppid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
