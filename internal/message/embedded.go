package message

import "time"

// Embedded is a read-only view over a message carried inside another one:
// the quoted reply target or a forwarded message. Embedded fragments stay as
// delivered; only the owning View can fetch fuller data.
type Embedded struct {
	fragment    Fragment
	attachments AttachmentList
}

func newEmbedded(fragment Fragment) *Embedded {
	return &Embedded{
		fragment:    fragment,
		attachments: NewAttachmentList(fragment.Attachments),
	}
}

// ID returns the message id, zero when the source omitted it.
func (e *Embedded) ID() int64 {
	return e.fragment.ID
}

// ConversationMessageID returns the conversation-scoped id.
func (e *Embedded) ConversationMessageID() int64 {
	return e.fragment.ConversationMessageID
}

// PeerID returns the conversation peer id.
func (e *Embedded) PeerID() int64 {
	return e.fragment.PeerID
}

// SenderID returns the author id.
func (e *Embedded) SenderID() int64 {
	return e.fragment.SenderID
}

// Text returns the message body.
func (e *Embedded) Text() string {
	return e.fragment.Text
}

// HasText reports whether the message carries a body.
func (e *Embedded) HasText() bool {
	return e.fragment.Text != ""
}

// CreatedAt returns the creation time in UTC, zero when unknown.
func (e *Embedded) CreatedAt() time.Time {
	if e.fragment.Date == 0 {
		return time.Time{}
	}
	return time.Unix(e.fragment.Date, 0).UTC()
}

// UpdatedAt returns the last edit time in UTC, zero if never edited.
func (e *Embedded) UpdatedAt() time.Time {
	if e.fragment.UpdateTime == 0 {
		return time.Time{}
	}
	return time.Unix(e.fragment.UpdateTime, 0).UTC()
}

// Attachments returns the message's own attachment list.
func (e *Embedded) Attachments() AttachmentList {
	return e.attachments
}

// Forwards builds the chain of messages forwarded inside this one. Walking
// it is the only way to reach nesting levels the parent's aggregate lookup
// does not cover.
func (e *Embedded) Forwards() ForwardChain {
	return newForwardChain(e.fragment.Forwards)
}

// HasAttachments reports a match among the message's own attachments only.
func (e *Embedded) HasAttachments(kind AttachmentKind) bool {
	return e.attachments.HasAttachments(kind)
}

// FindAttachments filters the message's own attachments only.
func (e *Embedded) FindAttachments(kind AttachmentKind) []Attachment {
	return e.attachments.FindAttachments(kind)
}
