package chat

import (
	"sort"
	"sync"
)

// Registry tracks which connections are subscribed to which channels. It
// holds identifiers only; delivery is the Dispatcher's concern.
type Registry struct {
	mu        sync.RWMutex
	byChannel map[string]map[ConnectionID]struct{}
	byConn    map[ConnectionID]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byChannel: make(map[string]map[ConnectionID]struct{}),
		byConn:    make(map[ConnectionID]map[string]struct{}),
	}
}

// Join subscribes conn to channel. Joining twice is a no-op.
func (r *Registry) Join(conn ConnectionID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.byChannel[channel]
	if !ok {
		members = make(map[ConnectionID]struct{})
		r.byChannel[channel] = members
	}
	members[conn] = struct{}{}

	joined, ok := r.byConn[conn]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[conn] = joined
	}
	joined[channel] = struct{}{}
}

// Leave unsubscribes conn from channel. Leaving a channel that was not joined
// is a no-op.
func (r *Registry) Leave(conn ConnectionID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn, channel)
}

// LeaveAll drops every subscription held by conn in one step. A concurrent
// fan-out sees the connection either fully subscribed or not at all.
func (r *Registry) LeaveAll(conn ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel := range r.byConn[conn] {
		r.removeLocked(conn, channel)
	}
	delete(r.byConn, conn)
}

func (r *Registry) removeLocked(conn ConnectionID, channel string) {
	if members, ok := r.byChannel[channel]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.byChannel, channel)
		}
	}
	if joined, ok := r.byConn[conn]; ok {
		delete(joined, channel)
		if len(joined) == 0 {
			delete(r.byConn, conn)
		}
	}
}

// SubscribersOf returns the current members of channel, sorted.
func (r *Registry) SubscribersOf(channel string) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byChannel[channel]
	out := make([]ConnectionID, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChannelsOf returns the channels conn is subscribed to, sorted.
func (r *Registry) ChannelsOf(conn ConnectionID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.byConn[conn]
	out := make([]string, 0, len(joined))
	for channel := range joined {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of subscribers of channel.
func (r *Registry) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channel])
}

// forEach calls fn for every subscriber of channel while holding the read
// lock, so LeaveAll cannot interleave with the walk. fn must not call back
// into the registry for writing.
func (r *Registry) forEach(channel string, fn func(ConnectionID)) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byChannel[channel]
	for conn := range members {
		fn(conn)
	}
	return len(members)
}
