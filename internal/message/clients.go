package message

import (
	"context"
	"encoding/json"
	"io"
)

// Params carries the named arguments of one remote call.
type Params map[string]any

// Caller performs one named remote API operation and returns the raw
// response payload. Application rejections surface as typed errors from the
// implementing client; this package propagates them unchanged.
type Caller interface {
	Call(ctx context.Context, method string, params Params) (json.RawMessage, error)
}

// MediaSource is a named byte stream handed to the upload client.
type MediaSource struct {
	Name   string
	Reader io.Reader
}

// Uploader turns local media sources into sendable attachments. Each upload
// may fail independently; batch semantics belong to the caller.
type Uploader interface {
	UploadMessagePhoto(ctx context.Context, peerID int64, src MediaSource) (Attachment, error)
	UploadMessageDocument(ctx context.Context, peerID int64, src MediaSource) (Attachment, error)
	UploadAudioMessage(ctx context.Context, peerID int64, src MediaSource) (Attachment, error)
	UploadChatPhoto(ctx context.Context, chatID int64, src MediaSource) (string, error)
}

// TupleDecoder maps one positional long-poll update tuple onto a message
// fragment. Implementations are pure; session handling stays with the
// transport.
type TupleDecoder func(tuple []json.RawMessage) (Fragment, error)
