package event

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrHandlerTimeout    = errors.New("handler timed out")
)

// HandlerTimeout is how long a request waits for the reply of a recipient.
const HandlerTimeout = 5 * time.Second

const queueSize = 100

// Bus delivers events to attached recipients. Each recipient handles its
// events in order on its own goroutine. Events for a recipient with a full
// queue are dropped.
type Bus interface {
	Push(data any, topics ...string)
	// Request pushes an event and returns a channel that yields one reply per
	// recipient that received it. The channel is closed after the last reply.
	Request(data any, topics ...string) <-chan Reply
	// AttachHandlerFunc attaches fn under id, replacing any recipient with the
	// same id. An empty id is replaced by a random one. Without topics fn
	// receives every event.
	AttachHandlerFunc(id string, fn HandlerSyncFunc, topics ...string) (handlerID string, replaced bool)
	AttachHandlerAsyncFunc(id string, fn HandlerFunc, topics ...string) (handlerID string, replaced bool)
	DetachRecipient(id string) (success bool)
	DetachAllRecipients() (n int)
}

type internalBus struct {
	mu sync.RWMutex
	rs map[string]*recipient
}

func NewInternalBus() Bus {
	return &internalBus{
		rs: map[string]*recipient{},
	}
}

func (b *internalBus) Push(data any, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.deliver(New(data, topics...))
}

func (b *internalBus) Request(data any, topics ...string) <-chan Reply {
	e := New(data, topics...)

	b.mu.RLock()
	replies := make(chan Reply, len(b.rs))
	e.replyChan = replies
	pending := b.deliver(e)
	b.mu.RUnlock()

	out := make(chan Reply, len(pending))
	go awaitReplies(e.ID, replies, pending, out)
	return out
}

// awaitReplies forwards one reply per pending recipient to out. Recipients
// that do not answer within HandlerTimeout get ErrHandlerTimeout.
func awaitReplies(eventID string, replies <-chan Reply, pending map[string]struct{}, out chan<- Reply) {
	defer close(out)

	timeout := time.NewTimer(HandlerTimeout)
	defer timeout.Stop()

	for len(pending) > 0 {
		select {
		case r := <-replies:
			if _, ok := pending[r.HandlerID]; !ok {
				continue
			}
			delete(pending, r.HandlerID)
			out <- r
		case <-timeout.C:
			for id := range pending {
				out <- Reply{
					EventID:   eventID,
					HandlerID: id,
					Err:       ErrHandlerTimeout,
				}
			}
			return
		}
	}
}

// deliver queues e for every recipient subscribed to one of its topics and
// returns the ids of those that accepted it. b.mu must be held.
func (b *internalBus) deliver(e Event) map[string]struct{} {
	accepted := map[string]struct{}{}
	for id, r := range b.rs {
		if r.subscribed(e) && r.offer(e) {
			accepted[id] = struct{}{}
		}
	}
	return accepted
}

func (b *internalBus) AttachHandlerFunc(id string, fn HandlerSyncFunc, topics ...string) (string, bool) {
	if fn == nil {
		panic(fmt.Sprintf("AttachHandlerFunc called with id %q and nil handler", id))
	}

	id = recipientID(id)
	return b.attach(id, topics, func(e Event) {
		data, err := fn(e)
		e.reply(Reply{
			HandlerID: id,
			Data:      data,
			Err:       err,
		})
	})
}

func (b *internalBus) AttachHandlerAsyncFunc(id string, fn HandlerFunc, topics ...string) (string, bool) {
	if fn == nil {
		panic(fmt.Sprintf("AttachHandlerAsyncFunc called with id %q and nil handler", id))
	}

	id = recipientID(id)
	return b.attach(id, topics, func(e Event) {
		e.reply(Reply{HandlerID: id})
		fn(e)
	})
}

func (b *internalBus) attach(id string, topics []string, handle func(Event)) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, replaced := b.rs[id]
	if replaced {
		old.close()
	}
	b.rs[id] = newRecipient(id, topics, handle)
	return id, replaced
}

func (b *internalBus) DetachRecipient(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rs[id]
	if !ok {
		return false
	}

	r.close()
	delete(b.rs, id)
	return true
}

func (b *internalBus) DetachAllRecipients() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.rs)
	for _, r := range b.rs {
		r.close()
	}
	b.rs = map[string]*recipient{}
	return n
}

func recipientID(id string) string {
	if id == "" {
		return newID()
	}
	return id
}

type recipient struct {
	id     string
	topics []string
	handle func(Event)
	queue  chan Event
	done   chan struct{}
}

func newRecipient(id string, topics []string, handle func(Event)) *recipient {
	r := &recipient{
		id:     id,
		topics: topics,
		handle: handle,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *recipient) subscribed(e Event) bool {
	if len(r.topics) == 0 {
		return true
	}

	for _, t := range r.topics {
		if e.hasTopic(t) {
			return true
		}
	}
	return false
}

// offer queues e unless r is closed or its queue is full.
func (r *recipient) offer(e Event) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.queue <- e:
		return true
	default:
		return false
	}
}

func (r *recipient) run() {
	for {
		select {
		case <-r.done:
			r.drain()
			return
		case e := <-r.queue:
			r.handle(e)
		}
	}
}

// drain answers requests that were queued when r was closed.
func (r *recipient) drain() {
	for {
		select {
		case e := <-r.queue:
			e.reply(Reply{
				HandlerID: r.id,
				Err:       ErrRecipientNotFound,
			})
		default:
			return
		}
	}
}

func (r *recipient) close() {
	close(r.done)
}
