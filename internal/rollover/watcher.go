package rollover

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Watch runs periodic rollover checks until ctx is cancelled. Ticks outside
// the early-morning window are skipped; a process that lives through
// midnight rolls over within minutes of the boundary, while foreground and
// view-load events call Check directly at any hour. Blocks the caller.
func (t *Transactioner) Watch(ctx context.Context, userID int64, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !inRolloverWindow(t.now()) {
				continue
			}
			if _, err := t.Check(ctx, userID); err != nil {
				t.log.Warn("scheduled rollover check failed",
					zap.Int64("user_id", userID), zap.Error(err))
			}
		}
	}
}

// inRolloverWindow reports whether now falls in the 00:01-00:05 window.
// The first minute after midnight is skipped so a clock still settling on
// the new day cannot trigger a premature check.
func inRolloverWindow(now time.Time) bool {
	return now.Hour() == 0 && now.Minute() >= 1 && now.Minute() <= 5
}
