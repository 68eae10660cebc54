package chat

import "time"

// MessageID identifies a message for the lifetime of the process. Identifiers
// are allocated from a single increasing counter and are never reused.
type MessageID uint64

// ConnectionID identifies a live connection.
type ConnectionID string

// Author carries the display fields of whoever posted a message.
type Author struct {
	Name        string
	AvatarLabel string
	ColorTag    string
}

// Reaction is an emoji with the number of people who used it.
type Reaction struct {
	Emoji string
	Count int
}

// ThreadMarker flags a message that has replies.
type ThreadMarker struct {
	Replies int
}

// Message is a single entry in a channel's log.
type Message struct {
	ID        MessageID
	Channel   string
	Author    Author
	Body      string
	CreatedAt time.Time
	Reactions []Reaction
	Thread    *ThreadMarker
}

// clone returns a copy that shares no mutable state with m.
func (m Message) clone() Message {
	if m.Reactions != nil {
		m.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	if m.Thread != nil {
		t := *m.Thread
		m.Thread = &t
	}
	return m
}

// ChannelSummary describes a channel without its messages.
type ChannelSummary struct {
	Name         string
	MessageCount int
	LastActivity time.Time
}
