package database

import (
	"context"
	"log"
	"time"
)

const pruneInterval = time.Hour

// RunPruner deletes journal entries older than retention once an hour until
// ctx is done. A non-positive retention keeps everything.
func (s *Store) RunPruner(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := s.DeleteEventsBefore(ctx, now.Add(-retention))
			if err != nil {
				log.Printf("[journal] WARN: failed to prune events: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[journal] pruned %d event(s) older than %s", n, retention)
			}
		}
	}
}
