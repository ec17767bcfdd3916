package tracking

import "log"

// Control message identifiers understood by the channel supervisor.
const (
	// MsgLossOfLock tells the supervisor the channel lost carrier lock and
	// went idle; a fresh acquisition handoff is needed.
	MsgLossOfLock = 2
)

// Message is a channel-addressed control event.
type Message struct {
	Channel int `json:"channel"`
	ID      int `json:"id"`
}

// ControlBus carries control messages from tracking channels to the
// supervisor. Posting never blocks the tracking loop; if the consumer falls
// behind, messages are dropped with a log line.
type ControlBus struct {
	ch chan Message
}

// NewControlBus creates a bus with the given queue depth.
func NewControlBus(depth int) *ControlBus {
	return &ControlBus{ch: make(chan Message, depth)}
}

// Post enqueues a message without blocking. Safe for concurrent use from
// multiple channels.
func (b *ControlBus) Post(m Message) {
	select {
	case b.ch <- m:
	default:
		log.Printf("control bus full, dropping message %d for channel %d", m.ID, m.Channel)
	}
}

// Messages returns the receive side of the bus.
func (b *ControlBus) Messages() <-chan Message {
	return b.ch
}
