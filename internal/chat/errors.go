package chat

import "github.com/pkg/errors"

var (
	// ErrChannelNotFound is returned when a delete targets a channel with no history.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMessageNotFound is returned when a delete targets an identifier that is
	// not (or no longer) present in a known channel.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidInput is returned for empty bodies and empty channel names.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionExists is returned when a connection identifier is opened twice.
	ErrConnectionExists = errors.New("connection already open")

	// ErrConnectionNotOpen is returned when joining or leaving with a
	// connection that was never opened or has already been closed.
	ErrConnectionNotOpen = errors.New("connection not open")
)
