package telnet

import (
	"context"
	"sync"
)

// ingressItem is one unit handed to the single consumer goroutine that drives
// the state machine. barrier is non-nil only for Drain: the consumer closes
// it once every item queued ahead of it has been processed, which is how
// Drain waits for a specific point in the stream without needing its own
// lock around the channel.
type ingressItem struct {
	b       byte
	barrier chan struct{}
}

// ingress is the bounded, multi-producer/single-consumer pipeline described
// for Interpret/InterpretSlice: producers (however many goroutines a host
// calls Interpret from) push bytes onto a fixed-capacity channel, and exactly
// one consumer goroutine pulls from it and fires them through the state
// machine in arrival order. Once the channel fills, a producer's send blocks
// until the consumer catches up — backpressure is the channel itself, not a
// growable buffer, so a slow or stalled consumer throttles reads from the
// network rather than letting memory use grow without bound.
type ingress struct {
	items chan ingressItem

	closeOnce sync.Once
	closed    chan struct{}
}

func newIngress(bufferSize int) *ingress {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &ingress{
		items:  make(chan ingressItem, bufferSize),
		closed: make(chan struct{}),
	}
}

// push queues one byte. It blocks if the channel is full, and returns false
// without blocking forever if the ingress has already been disposed.
func (g *ingress) push(b byte) bool {
	select {
	case <-g.closed:
		return false
	default:
	}

	select {
	case g.items <- ingressItem{b: b}:
		return true
	case <-g.closed:
		return false
	}
}

// drain queues a barrier and blocks until the consumer goroutine reaches it,
// guaranteeing every byte pushed before this call has been fully processed
// by the state machine by the time drain returns. Callbacks those bytes
// raised are queued to the event pump and may not have been delivered yet.
func (g *ingress) drain() bool {
	barrier := make(chan struct{})
	select {
	case g.items <- ingressItem{barrier: barrier}:
	case <-g.closed:
		return false
	}

	select {
	case <-barrier:
		return true
	case <-g.closed:
		return false
	}
}

// dispose permanently stops accepting new items; any goroutine currently
// blocked in push or drain is released immediately rather than hanging.
func (g *ingress) dispose() {
	g.closeOnce.Do(func() {
		close(g.closed)
	})
}

// run is the single consumer: it fires every queued byte into the machine
// via step, resolves barriers as it passes them, and returns once ctx is
// cancelled or dispose is called. Any error from step is reported through
// onError and processing continues — a malformed subnegotiation from a buggy
// peer should never wedge the whole connection.
func (g *ingress) run(ctx context.Context, step func(b byte) error, onError func(error)) {
	for {
		select {
		case item := <-g.items:
			if item.barrier != nil {
				close(item.barrier)
				continue
			}
			if err := step(item.b); err != nil {
				onError(err)
			}
		case <-ctx.Done():
			return
		case <-g.closed:
			return
		}
	}
}
