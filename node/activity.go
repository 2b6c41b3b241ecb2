package node

import (
	"sync"
	"time"
)

// activityWindow tracks how often each remote address has sent this node
// a datagram recently, so the receive path can flag senders that behave like
// the crawler/scraper traffic original_source/dht_node/dht_node.py
// detects via its _node_activity TTLCache (SPEC_FULL.md §3/§10.4).
//
// A scraper, for this purpose, is an address that has sent more than
// scraperLimit messages within scraperWindow.
type activityWindow struct {
	mu     sync.Mutex
	seenAt map[string][]time.Time
	window time.Duration
	limit  int
}

func newActivityWindow(window time.Duration, limit int) *activityWindow {
	return &activityWindow{
		seenAt: make(map[string][]time.Time),
		window: window,
		limit:  limit,
	}
}

// recordAndCheck records a message from ip at now and reports whether ip
// has now crossed the scraper threshold within the tracking window.
func (a *activityWindow) recordAndCheck(ip string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	times := a.seenAt[ip]
	cutoff := now.Add(-a.window)
	kept := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	a.seenAt[ip] = kept
	return len(kept) > a.limit
}

// forget drops tracking state for an address, used once it has been
// blocked so the activity map doesn't keep growing for it.
func (a *activityWindow) forget(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.seenAt, ip)
}
