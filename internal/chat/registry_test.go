package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Join("x", "general")
	r.Join("x", "general")
	assert.Equal(t, []ConnectionID{"x"}, r.SubscribersOf("general"))
	assert.Equal(t, 1, r.Count("general"))

	r.Leave("x", "general")
	assert.Empty(t, r.SubscribersOf("general"))
	assert.Empty(t, r.ChannelsOf("x"))
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Join("y", "general")

	r.Leave("x", "general")
	r.Leave("y", "random")

	assert.Equal(t, []ConnectionID{"y"}, r.SubscribersOf("general"))
}

func TestLeaveAllRemovesEverySubscription(t *testing.T) {
	r := NewRegistry()
	r.Join("x", "general")
	r.Join("x", "random")
	r.Join("y", "general")

	assert.Equal(t, []string{"general", "random"}, r.ChannelsOf("x"))

	r.LeaveAll("x")

	assert.Equal(t, []ConnectionID{"y"}, r.SubscribersOf("general"))
	assert.Empty(t, r.SubscribersOf("random"))
	assert.Empty(t, r.ChannelsOf("x"))

	// A second call finds nothing to do.
	r.LeaveAll("x")
}

func TestSubscribersOfIsASnapshot(t *testing.T) {
	r := NewRegistry()
	r.Join("a", "general")

	snapshot := r.SubscribersOf("general")
	r.Join("b", "general")

	assert.Equal(t, []ConnectionID{"a"}, snapshot)
	assert.Equal(t, []ConnectionID{"a", "b"}, r.SubscribersOf("general"))
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()
	conns := []ConnectionID{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn ConnectionID) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Join(conn, "general")
				r.Join(conn, "random")
				r.SubscribersOf("general")
				r.Leave(conn, "random")
				if i%50 == 0 {
					r.LeaveAll(conn)
				}
			}
			r.Join(conn, "general")
		}(conn)
	}
	wg.Wait()

	assert.Equal(t, conns, r.SubscribersOf("general"))
	assert.Empty(t, r.SubscribersOf("random"))
}
