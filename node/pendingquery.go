package node

import (
	"net"
	"sync"
	"time"
)

// pendingQuery is spec.md §3's PendingQuery: a transaction this node
// issued and is waiting on a matching response for.
type pendingQuery struct {
	txn      string
	query    string
	issuedAt time.Time
	destAddr *net.UDPAddr
}

// pendingQueries is the node-wide map of outstanding queries, keyed by
// transaction id, guarded by its own mutex per spec.md §5's one-lock
// discipline.
type pendingQueries struct {
	mu    sync.Mutex
	byTxn map[string]pendingQuery
}

func newPendingQueries() *pendingQueries {
	return &pendingQueries{byTxn: make(map[string]pendingQuery)}
}

// add records that a query with the given transaction id was just sent.
func (p *pendingQueries) add(txn []byte, query string, dest *net.UDPAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTxn[string(txn)] = pendingQuery{
		txn:      string(txn),
		query:    query,
		issuedAt: time.Now(),
		destAddr: dest,
	}
}

// take removes and returns the pending query matching txn, if any. A
// response is "matched" exactly when this returns ok == true.
func (p *pendingQueries) take(txn []byte) (pendingQuery, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.byTxn[string(txn)]
	if ok {
		delete(p.byTxn, string(txn))
	}
	return q, ok
}

// sweepExpired removes every entry older than timeout, relative to now.
// Called from the maintenance loop per spec.md §4.4 step 2.
func (p *pendingQueries) sweepExpired(now time.Time, timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for txn, q := range p.byTxn {
		if now.Sub(q.issuedAt) > timeout {
			delete(p.byTxn, txn)
		}
	}
}

// len reports the number of outstanding queries, mostly for tests.
func (p *pendingQueries) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byTxn)
}
