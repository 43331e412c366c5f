package mem

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RunSweeper calls SweepExpired on every store each interval until ctx is done.
func RunSweeper(ctx context.Context, every time.Duration, logger *slog.Logger, stores ...Sweeper) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range stores {
				n, err := s.SweepExpired(ctx)
				if err != nil {
					logger.Error("sweep failed", "error", err.Error())
					continue
				}
				if n > 0 {
					logger.Debug("swept expired entries", "removed", n)
				}
			}
		}
	}
}
