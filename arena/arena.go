// Package arena provides a free list of pre-allocated byte slices, used by
// the node runtime's receive loop to avoid allocating a fresh buffer for
// every inbound UDP datagram.
package arena

import "dhtnode/util"

// Arena is a free list that provides quick access to pre-allocated byte
// slices, reducing allocation churn on the receive hot path. After the
// arena is created, a slice of bytes is requested with Pop(). The caller
// is responsible for calling Push() once it is done with the buffer's
// contents, returning it to the pool. Bytes handed out by Pop() are not
// zeroed, so callers must only read positions they know were overwritten,
// typically by truncating the slice to the count returned by a read call.
type Arena chan []byte

// NewArena allocates numBlocks buffers of blockSize bytes each.
func NewArena(blockSize int, numBlocks int) Arena {
	blocks := make(Arena, numBlocks)
	for i := 0; i < numBlocks; i++ {
		blocks <- make([]byte, blockSize)
	}
	return blocks
}

// NewDatagramArena allocates a pool sized for UDP datagram reads: each
// buffer is large enough to hold the largest datagram this node is
// prepared to receive without truncation.
func NewDatagramArena(numBlocks int) Arena {
	return NewArena(util.ReceiveBufferSize, numBlocks)
}

// Pop removes and returns a buffer from the pool, blocking if none are
// currently free.
func (a Arena) Pop() (x []byte) {
	return <-a
}

// Push returns a buffer to the pool, restoring it to its full capacity.
func (a Arena) Push(x []byte) {
	x = x[:cap(x)]
	a <- x
}
