package event

import (
	"time"

	"github.com/gofrs/uuid"
)

// Event is pushed to every recipient that is attached to one of its topics.
type Event struct {
	ID         string
	OccurredAt time.Time
	Topics     []string
	Data       any

	replyChan chan<- Reply
}

// Reply is the answer of a single recipient to a request.
type Reply struct {
	EventID   string
	HandlerID string
	Data      any
	Err       error
}

// HandlerSyncFunc answers requests. Its result is sent back to the requester.
type HandlerSyncFunc func(Event) (any, error)

// HandlerFunc observes events without answering them.
type HandlerFunc func(Event)

func New(data any, topics ...string) Event {
	return Event{
		ID:         newID(),
		OccurredAt: time.Now(),
		Topics:     topics,
		Data:       data,
	}
}

func (e Event) hasTopic(topic string) bool {
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

func (e Event) reply(r Reply) {
	if e.replyChan == nil {
		return
	}

	r.EventID = e.ID
	select {
	case e.replyChan <- r:
	default:
	}
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}
