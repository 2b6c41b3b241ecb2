package node

import (
	"sync"

	"dhtnode/krpc"
	"dhtnode/remotenode"
)

// MessageHandler observes every successfully parsed inbound message, per
// spec.md §3's HandlerChain / §6's add_message_handler.
type MessageHandler func(msg krpc.Message, sender remotenode.RemoteNode)

// handlerChain is the ordered list of registered handlers, guarded by its
// own mutex per spec.md §5.
type handlerChain struct {
	mu       sync.Mutex
	handlers []MessageHandler
}

func newHandlerChain() *handlerChain {
	return &handlerChain{}
}

func (h *handlerChain) add(fn MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// snapshot returns a copy of the current handler slice so invocation can
// happen without holding the chain's lock across arbitrary user code,
// per spec.md §5's no-lock-across-callback discipline.
func (h *handlerChain) snapshot() []MessageHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MessageHandler, len(h.handlers))
	copy(out, h.handlers)
	return out
}
