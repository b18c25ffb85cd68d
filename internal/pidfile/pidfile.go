// Package pidfile writes the process-id marker an external supervisor
// reads to verify the daemon is alive.
package pidfile

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Write records the current pid at path. The parent directory must
// already exist.
func Write(path string) error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pidfile %s: %w", path, err)
	}
	return nil
}

// Remove deletes the marker on shutdown. A missing file is not an
// error; anything else is logged and swallowed since the process is
// exiting anyway.
func Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove pidfile", "path", path, "error", err)
	}
}
