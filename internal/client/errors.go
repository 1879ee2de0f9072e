package client

import "errors"

var (
	// ErrTransport means the push channel failed to open or dropped.
	ErrTransport = errors.New("transport error")

	// ErrNotConnected is returned for sends and joins while the channel is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrParse marks an inbound frame that could not be decoded. It is only
	// ever logged.
	ErrParse = errors.New("malformed frame")

	// ErrFetch means the history snapshot request failed.
	ErrFetch = errors.New("history fetch failed")

	// ErrNoActiveRoom is returned by SendMessage before any room is selected.
	ErrNoActiveRoom = errors.New("no active room")

	// ErrEmptyMessage rejects blank message content.
	ErrEmptyMessage = errors.New("empty message")

	// ErrSessionClosed is returned for commands issued after Run has returned.
	ErrSessionClosed = errors.New("session closed")
)
