package publisher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/arkmeter/release-publisher/internal/logger"
)

// isAnotherPublisherRunning scans the process table for another instance of
// this executable. Best effort: scan failures allow the run to proceed, since
// refusing to publish on a broken process table would be worse than the race
// it guards against.
func isAnotherPublisherRunning(ctx context.Context) bool {
	executablePath, err := os.Executable()
	if err != nil {
		logger.Debugf(ctx, "Unable to resolve own executable: %v", err)
		return false
	}

	executableName := filepath.Base(executablePath)

	processList, err := ps.Processes()
	if err != nil {
		logger.Debugf(ctx, "Unable to list processes: %v", err)
		return false
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executableName {
			logger.WarnKV(ctx, "Found another running publisher", "pid", process.Pid())
			return true
		}
	}

	return false
}
