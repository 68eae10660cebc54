package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// statusCodeForError maps core errors to HTTP status codes.
func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, chat.ErrChannelNotFound), errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrConnectionNotOpen):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sanitizedError is the text shown to clients for err. Internal failures never
// leak their cause.
func sanitizedError(err error) string {
	switch {
	case errors.Is(err, chat.ErrChannelNotFound):
		return "Channel not found"
	case errors.Is(err, chat.ErrMessageNotFound):
		return "Message not found"
	case errors.Is(err, chat.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, chat.ErrConnectionNotOpen):
		return "Connection is not open"
	default:
		return "An internal error has occurred."
	}
}
