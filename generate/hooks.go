package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const slowHookThreshold = 3 * time.Second

type BuildGeneratedRequest struct {
	BuildID string
	OutDir  string
	Pages   []string
}

// BuildGeneratedHook runs once after every page has been written.
type BuildGeneratedHook interface {
	Name() string
	BuildGenerated(ctx context.Context, req BuildGeneratedRequest) error
}

// runHook waits for fn to return. A hook still running after threshold gets
// one warning; it is never cancelled.
func runHook(ctx context.Context, logger *slog.Logger, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	timer := time.AfterFunc(threshold, func() {
		logger.Warn("integration hook is taking a long time", "hook", name, "threshold", threshold)
	})
	defer timer.Stop()

	if err := fn(ctx); err != nil {
		return errors.Wrapf(err, "integration %s", name)
	}

	logger.Debug("integration hook finished", "hook", name, "duration", time.Since(start))
	return nil
}
