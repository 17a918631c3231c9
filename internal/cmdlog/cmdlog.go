package cmdlog

import (
	"time"

	"go.uber.org/zap"

	"unfollowninja/internal/metrics"
)

// Run executes a CLI command body, recording its outcome in logs and metrics.
func Run(logger *zap.Logger, cmd string, f func() error) error {
	start := time.Now()
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logger.Error(cmd+"_error", zap.Duration("took", time.Since(start)), zap.Error(err))
	} else {
		metrics.IncCommandRun(cmd)
		logger.Info(cmd+"_ok", zap.Duration("took", time.Since(start)))
	}
	return err
}
