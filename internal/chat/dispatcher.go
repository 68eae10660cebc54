package chat

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultDeliveryBuffer is the per-connection queue length used when none is configured.
const DefaultDeliveryBuffer = 256

// Observer is notified about fan-out outcomes. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	Published(ev Event, subscribers int)
	Delivered(conn ConnectionID, ev Event)
	Dropped(conn ConnectionID, ev Event)
}

type nopObserver struct{}

func (nopObserver) Published(Event, int)          {}
func (nopObserver) Delivered(ConnectionID, Event) {}
func (nopObserver) Dropped(ConnectionID, Event)   {}

// DispatcherConfig tunes a Dispatcher. Zero values select defaults.
type DispatcherConfig struct {
	Buffer   int
	Logger   logrus.FieldLogger
	Observer Observer
}

// Dispatcher fans channel events out to subscribed connections. Each attached
// connection gets an outlet: a bounded FIFO drained by its own goroutine, so a
// slow or failing receiver only ever delays or loses its own events.
type Dispatcher struct {
	registry *Registry
	buffer   int
	log      logrus.FieldLogger
	observer Observer

	mu      sync.RWMutex
	outlets map[ConnectionID]*outlet
}

// NewDispatcher returns a dispatcher that resolves subscribers through registry.
func NewDispatcher(registry *Registry, cfg DispatcherConfig) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultDeliveryBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Dispatcher{
		registry: registry,
		buffer:   cfg.Buffer,
		log:      cfg.Logger,
		observer: cfg.Observer,
		outlets:  make(map[ConnectionID]*outlet),
	}
}

// Attach starts an outlet for conn. It returns ErrConnectionExists if conn
// already has one.
func (d *Dispatcher) Attach(conn ConnectionID, deliver DeliverFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.outlets[conn]; ok {
		return ErrConnectionExists
	}
	o := newOutlet(conn, deliver, d.buffer, d.log.WithField("conn", conn), d.observer)
	d.outlets[conn] = o
	go o.run()
	return nil
}

// Detach stops conn's outlet. It waits for a delivery that is already running
// to return; anything still queued is discarded.
func (d *Dispatcher) Detach(conn ConnectionID) {
	if o := d.remove(conn); o != nil {
		o.stop()
	}
}

// remove unhooks conn's outlet without stopping it.
func (d *Dispatcher) remove(conn ConnectionID) *outlet {
	d.mu.Lock()
	defer d.mu.Unlock()

	o := d.outlets[conn]
	delete(d.outlets, conn)
	return o
}

// Attached reports whether conn currently has an outlet.
func (d *Dispatcher) Attached(conn ConnectionID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.outlets[conn]
	return ok
}

// Publish offers ev to every current subscriber of ev.Channel and returns how
// many subscribers it was offered to. It never waits on a receiver: a full
// outlet loses the event and the loss is not retried.
func (d *Dispatcher) Publish(ev Event) int {
	n := d.registry.forEach(ev.Channel, func(conn ConnectionID) {
		d.mu.RLock()
		o := d.outlets[conn]
		d.mu.RUnlock()

		if o == nil || !o.offer(ev) {
			d.observer.Dropped(conn, ev)
			d.log.WithFields(logrus.Fields{
				"conn":    conn,
				"channel": ev.Channel,
				"event":   ev.Kind,
			}).Debug("dropped event for subscriber")
		}
	})
	d.observer.Published(ev, n)
	return n
}

type outlet struct {
	conn     ConnectionID
	deliver  DeliverFunc
	queue    chan Event
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	log      logrus.FieldLogger
	observer Observer
}

func newOutlet(conn ConnectionID, deliver DeliverFunc, buffer int, log logrus.FieldLogger, observer Observer) *outlet {
	return &outlet{
		conn:     conn,
		deliver:  deliver,
		queue:    make(chan Event, buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
		observer: observer,
	}
}

// offer enqueues ev without blocking.
func (o *outlet) offer(ev Event) bool {
	select {
	case <-o.quit:
		return false
	default:
	}

	select {
	case o.queue <- ev:
		return true
	default:
		return false
	}
}

func (o *outlet) run() {
	defer close(o.done)

	for {
		select {
		case <-o.quit:
			return
		case ev := <-o.queue:
			// Prefer quitting over draining once a stop was requested.
			select {
			case <-o.quit:
				return
			default:
			}
			o.safeDeliver(ev)
		}
	}
}

func (o *outlet) safeDeliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.observer.Dropped(o.conn, ev)
			o.log.WithField("panic", r).Warn("recovered from panic in delivery callback")
		}
	}()

	ev.Message = ev.Message.clone()
	o.deliver(ev)
	o.observer.Delivered(o.conn, ev)
}

func (o *outlet) stop() {
	o.once.Do(func() { close(o.quit) })
	<-o.done
}
