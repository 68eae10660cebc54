package chat

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Defaults applied to empty author fields on Create.
const (
	DefaultAuthorName  = "You"
	DefaultAvatarLabel = "YU"
	DefaultAuthorColor = "#2ecc71"
)

// Core is the boundary the transport layer calls into. It validates input,
// applies mutations to the Store and publishes the resulting events through
// the Dispatcher in commit order.
type Core struct {
	store      *Store
	registry   *Registry
	dispatcher *Dispatcher
	log        logrus.FieldLogger

	// lifecycle keeps Join/Leave from racing a connection's open or close.
	lifecycle sync.RWMutex
}

// NewCore wires the three components together. The dispatcher must have been
// built on the same registry.
func NewCore(store *Store, registry *Registry, dispatcher *Dispatcher, logger logrus.FieldLogger) *Core {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Core{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		log:        logger,
	}
}

// New builds a Core with fresh components.
func New(cfg DispatcherConfig) *Core {
	registry := NewRegistry()
	return NewCore(NewStore(), registry, NewDispatcher(registry, cfg), cfg.Logger)
}

// Store exposes the underlying message store.
func (c *Core) Store() *Store {
	return c.store
}

// List returns the channel's messages in display order.
func (c *Core) List(channel string) []Message {
	return c.store.ListMessages(channel)
}

// Channels summarizes every channel that has been written to.
func (c *Core) Channels() []ChannelSummary {
	return c.store.Channels()
}

// Subscribers returns the connections currently subscribed to channel.
func (c *Core) Subscribers(channel string) []ConnectionID {
	return c.registry.SubscribersOf(channel)
}

// Create appends a message and publishes MessageCreated. By the time any
// subscriber sees the event, List already includes the message.
func (c *Core) Create(channel string, author Author, body string) (Message, error) {
	if strings.TrimSpace(channel) == "" {
		return Message{}, errors.Wrap(ErrInvalidInput, "channel name is required")
	}
	if strings.TrimSpace(body) == "" {
		return Message{}, errors.Wrap(ErrInvalidInput, "message body is required")
	}

	msg := c.store.appendThen(channel, normalizeAuthor(author), body, func(msg Message) {
		c.dispatcher.Publish(NewMessageCreated(msg))
	})

	c.log.WithFields(logrus.Fields{
		"channel":    channel,
		"message_id": msg.ID,
		"author":     msg.Author.Name,
	}).Debug("message created")
	return msg, nil
}

// Delete removes a message and publishes MessageDeleted. Nothing is published
// when the delete fails.
func (c *Core) Delete(channel string, id MessageID) error {
	_, err := c.store.deleteThen(channel, id, func() {
		c.dispatcher.Publish(NewMessageDeleted(channel, id))
	})
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"channel":    channel,
		"message_id": id,
	}).Debug("message deleted")
	return nil
}

// OnConnectionOpen registers deliver as conn's outbound path.
func (c *Core) OnConnectionOpen(conn ConnectionID, deliver DeliverFunc) error {
	if deliver == nil {
		return errors.Wrap(ErrInvalidInput, "deliver callback is required")
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if err := c.dispatcher.Attach(conn, deliver); err != nil {
		return errors.Wrapf(err, "open %s", conn)
	}
	return nil
}

// Join subscribes an open connection to channel.
func (c *Core) Join(conn ConnectionID, channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.Wrap(ErrInvalidInput, "channel name is required")
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()

	if !c.dispatcher.Attached(conn) {
		return errors.Wrapf(ErrConnectionNotOpen, "join %q", channel)
	}
	c.registry.Join(conn, channel)
	return nil
}

// Leave unsubscribes an open connection from channel.
func (c *Core) Leave(conn ConnectionID, channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.Wrap(ErrInvalidInput, "channel name is required")
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()

	if !c.dispatcher.Attached(conn) {
		return errors.Wrapf(ErrConnectionNotOpen, "leave %q", channel)
	}
	c.registry.Leave(conn, channel)
	return nil
}

// OnConnectionClose drops every subscription of conn and stops its outlet.
// Once it returns no further event reaches conn's deliver callback. It must
// not be called from inside that callback.
func (c *Core) OnConnectionClose(conn ConnectionID) {
	c.lifecycle.Lock()
	c.registry.LeaveAll(conn)
	o := c.dispatcher.remove(conn)
	c.lifecycle.Unlock()

	if o != nil {
		o.stop()
	}
}

func normalizeAuthor(a Author) Author {
	a.Name = strings.TrimSpace(a.Name)
	a.AvatarLabel = strings.TrimSpace(a.AvatarLabel)
	a.ColorTag = strings.TrimSpace(a.ColorTag)
	if a.Name == "" {
		a.Name = DefaultAuthorName
	}
	if a.AvatarLabel == "" {
		a.AvatarLabel = DefaultAvatarLabel
	}
	if a.ColorTag == "" {
		a.ColorTag = DefaultAuthorColor
	}
	return a
}
