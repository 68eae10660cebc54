package chat

import "fmt"

// EventKind says what happened to a channel.
type EventKind int

const (
	// MessageCreated carries the newly appended message.
	MessageCreated EventKind = iota + 1
	// MessageDeleted carries only the identifier of the removed message.
	MessageDeleted
)

func (k EventKind) String() string {
	switch k {
	case MessageCreated:
		return "message_created"
	case MessageDeleted:
		return "message_deleted"
	default:
		return fmt.Sprintf("event_kind(%d)", int(k))
	}
}

// Event is a single change to a channel, published to its subscribers.
type Event struct {
	Kind    EventKind
	Channel string

	// Message is set for MessageCreated.
	Message Message

	// MessageID is set for both kinds.
	MessageID MessageID
}

// NewMessageCreated builds the event published after an append.
func NewMessageCreated(msg Message) Event {
	return Event{
		Kind:      MessageCreated,
		Channel:   msg.Channel,
		Message:   msg,
		MessageID: msg.ID,
	}
}

// NewMessageDeleted builds the event published after a delete.
func NewMessageDeleted(channel string, id MessageID) Event {
	return Event{
		Kind:      MessageDeleted,
		Channel:   channel,
		MessageID: id,
	}
}

// DeliverFunc hands one event to a connection's outbound path.
type DeliverFunc func(Event)
