package chat

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Store owns the ordered message log of every channel. Each channel is
// guarded by its own lock, so writers on different channels never contend.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*channelLog

	lastID atomic.Uint64
	now    func() time.Time
}

type channelLog struct {
	mu       sync.RWMutex
	messages []Message
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		channels: make(map[string]*channelLog),
		now:      time.Now,
	}
}

// lookup returns the log for name, or nil if the channel has never been written to.
func (s *Store) lookup(name string) *channelLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[name]
}

// lookupOrCreate returns the log for name, creating it on first use.
func (s *Store) lookupOrCreate(name string) *channelLog {
	if log := s.lookup(name); log != nil {
		return log
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok := s.channels[name]; ok {
		return log
	}
	log := &channelLog{}
	s.channels[name] = log
	return log
}

func (s *Store) nextID() MessageID {
	return MessageID(s.lastID.Add(1))
}

// ListMessages returns a snapshot of the channel's messages in insertion
// order. Unknown channels yield an empty, non-nil slice. Later mutations never
// show through the returned slice.
func (s *Store) ListMessages(channel string) []Message {
	log := s.lookup(channel)
	if log == nil {
		return []Message{}
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	out := make([]Message, len(log.messages))
	for i, msg := range log.messages {
		out[i] = msg.clone()
	}
	return out
}

// AppendMessage stamps a new message with a fresh identifier and the current
// time, appends it to the channel (creating the channel if needed) and
// returns it.
func (s *Store) AppendMessage(channel string, author Author, body string) Message {
	return s.appendThen(channel, author, body, nil)
}

// appendThen appends like AppendMessage and, while the channel lock is still
// held, hands the committed message to then. Callers use it to order side
// effects exactly like the commits themselves.
func (s *Store) appendThen(channel string, author Author, body string, then func(Message)) Message {
	log := s.lookupOrCreate(channel)

	log.mu.Lock()
	defer log.mu.Unlock()

	msg := Message{
		ID:        s.nextID(),
		Channel:   channel,
		Author:    author,
		Body:      body,
		CreatedAt: s.now(),
	}
	log.messages = append(log.messages, msg)

	if then != nil {
		then(msg.clone())
	}
	return msg.clone()
}

// DeleteMessage removes the message with the given identifier. It reports
// ErrChannelNotFound for a channel that was never written to and
// ErrMessageNotFound when the identifier is absent.
func (s *Store) DeleteMessage(channel string, id MessageID) (bool, error) {
	return s.deleteThen(channel, id, nil)
}

// deleteThen deletes like DeleteMessage and runs then under the channel lock
// after a successful removal.
func (s *Store) deleteThen(channel string, id MessageID, then func()) (bool, error) {
	log := s.lookup(channel)
	if log == nil {
		return false, errors.Wrapf(ErrChannelNotFound, "delete %d from %q", id, channel)
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	idx := -1
	for i := range log.messages {
		if log.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, errors.Wrapf(ErrMessageNotFound, "delete %d from %q", id, channel)
	}

	// Build a new backing array so no earlier reader can observe the shift.
	remaining := make([]Message, 0, len(log.messages)-1)
	remaining = append(remaining, log.messages[:idx]...)
	remaining = append(remaining, log.messages[idx+1:]...)
	log.messages = remaining

	if then != nil {
		then()
	}
	return true, nil
}

// Seed appends prepared messages to a channel. Identifiers and channel names
// are assigned by the store; a zero CreatedAt is replaced by the current time.
func (s *Store) Seed(channel string, msgs []Message) []Message {
	log := s.lookupOrCreate(channel)

	log.mu.Lock()
	defer log.mu.Unlock()

	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		msg = msg.clone()
		msg.ID = s.nextID()
		msg.Channel = channel
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = s.now()
		}
		log.messages = append(log.messages, msg)
		out = append(out, msg.clone())
	}
	return out
}

// Channels summarizes every known channel, sorted by name.
func (s *Store) Channels() []ChannelSummary {
	s.mu.RLock()
	names := make([]string, 0, len(s.channels))
	logs := make([]*channelLog, 0, len(s.channels))
	for name, log := range s.channels {
		names = append(names, name)
		logs = append(logs, log)
	}
	s.mu.RUnlock()

	out := make([]ChannelSummary, len(names))
	for i, log := range logs {
		log.mu.RLock()
		summary := ChannelSummary{Name: names[i], MessageCount: len(log.messages)}
		if n := len(log.messages); n > 0 {
			summary.LastActivity = log.messages[n-1].CreatedAt
		}
		log.mu.RUnlock()
		out[i] = summary
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
