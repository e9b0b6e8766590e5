package message

import "errors"

var (
	// ErrPayloadIncomplete indicates full-only data was accessed on a stub view.
	ErrPayloadIncomplete = errors.New("message view is not fully loaded")
	// ErrNotChat indicates a chat-scoped operation on a peer outside the chat range.
	ErrNotChat = errors.New("peer is not a chat")
)
