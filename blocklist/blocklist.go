// Package blocklist implements the bounded, TTL-swept cache of remote
// addresses this node has stopped talking to, per SPEC_FULL.md §3/§4.3: a
// BlockedAddress cache and a recent-activity window used to spot senders
// that query far more often than a well-behaved peer.
//
// Grounded on original_source/dht_node/dht_node.py, which keeps both as
// cachetools.TTLCache instances (_blocked_ips, _node_activity). Go has no
// direct TTLCache equivalent in this module's dependency set, but the
// teacher's go.mod already pins github.com/golang/groupcache — unused by
// any teacher file — whose lru.Cache this package puts to work as the
// size bound, paired with an explicit timestamp map for the TTL sweep
// cachetools provides natively and lru.Cache does not.
package blocklist

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// List is a bounded set of blocked addresses with expiring entries.
type List struct {
	mu    sync.Mutex
	times map[string]time.Time
	order *lru.Cache
	ttl   time.Duration
}

// New creates a List holding up to maxEntries addresses, each forgotten
// after ttl has passed since it was last blocked. Once maxEntries is
// exceeded the least recently blocked address is evicted first.
func New(maxEntries int, ttl time.Duration) *List {
	l := &List{
		times: make(map[string]time.Time),
		ttl:   ttl,
	}
	l.order = lru.New(maxEntries)
	l.order.OnEvicted = func(key lru.Key, _ interface{}) {
		delete(l.times, key.(string))
	}
	return l
}

// Block marks ip as blocked as of now.
func (l *List) Block(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.times[ip] = time.Now()
	l.order.Add(ip, struct{}{})
}

// Blocked reports whether ip is currently blocked, i.e. it was blocked
// within the last ttl.
func (l *List) Blocked(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.times[ip]
	if !ok {
		return false
	}
	return time.Since(t) <= l.ttl
}

// Sweep removes every entry older than ttl, intended to be called once
// per maintenance tick (SPEC_FULL.md §4.4 step 5).
func (l *List) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, t := range l.times {
		if time.Since(t) > l.ttl {
			delete(l.times, ip)
			l.order.Remove(ip)
		}
	}
}

// Len reports the number of addresses currently tracked.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.times)
}
