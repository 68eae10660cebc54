// Package chat holds the channel message store and its real-time fan-out.
//
// A Core ties together three independent pieces: the Store, which owns every
// channel's ordered message log; the Registry, which tracks which connections
// are subscribed to which channels; and the Dispatcher, which hands channel
// events to each subscribed connection without blocking the writer. Transport
// code talks to the Core only.
package chat
