package session

import (
	"context"
	"log"
	"time"
)

// Reaper evicts sessions that have been idle for longer than the idle
// timeout. It never waits on in-flight operations.
type Reaper struct {
	store    *Store
	interval time.Duration
	idle     time.Duration
}

func NewReaper(store *Store, interval, idle time.Duration) *Reaper {
	return &Reaper{store: store, interval: interval, idle: idle}
}

// Run sweeps on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[reaper] started: sweep every %s, idle timeout %s", r.interval, r.idle)
	for {
		select {
		case <-ctx.Done():
			log.Println("[reaper] stopped")
			return nil
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Sweep destroys every session last used before now minus the idle timeout
// and returns how many it evicted.
func (r *Reaper) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)
	evicted := 0
	for _, sess := range r.store.All() {
		if !sess.LastUsed().Before(cutoff) {
			continue
		}
		if r.store.destroyIfIdle(sess.Token, cutoff) {
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[reaper] evicted %d idle session(s)", evicted)
	}
	return evicted
}
