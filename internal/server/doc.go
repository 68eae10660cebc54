// Package server implements the HTTP and WebSocket transport for TeamChat.
//
// The chat core in internal/chat owns messages, subscriptions, and event
// fan-out. This package adapts it to the network: the Hub opens and closes
// WebSocket clients on the core, Client encodes delivered events as JSON or
// MessagePack frames, and the REST handlers map core errors to HTTP status
// codes. Configuration, origin checks, rate limiting, and metrics live in
// their own files.
package server
