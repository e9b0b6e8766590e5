package message

// AttachmentQuerier is the lookup surface shared by every attachment-bearing
// node: a message's own list, a reply, a forward chain, and the whole view.
type AttachmentQuerier interface {
	// HasAttachments reports whether any attachment matches kind.
	// KindAny matches every kind.
	HasAttachments(kind AttachmentKind) bool
	// FindAttachments returns the attachments matching kind in their
	// original order. KindAny returns all of them.
	FindAttachments(kind AttachmentKind) []Attachment
}

// AttachmentList is a read-only, order-preserving lookup over one message's
// attachments. It never mutates the underlying fragment.
type AttachmentList struct {
	items []Attachment
}

// NewAttachmentList wraps items without copying them.
func NewAttachmentList(items []Attachment) AttachmentList {
	return AttachmentList{items: items}
}

// Len returns the number of attachments.
func (l AttachmentList) Len() int {
	return len(l.items)
}

// HasAttachments reports whether any attachment matches kind.
func (l AttachmentList) HasAttachments(kind AttachmentKind) bool {
	if kind == KindAny {
		return len(l.items) > 0
	}
	for _, item := range l.items {
		if item.Kind == kind {
			return true
		}
	}
	return false
}

// FindAttachments filters by tag equality, preserving order.
func (l AttachmentList) FindAttachments(kind AttachmentKind) []Attachment {
	out := make([]Attachment, 0, len(l.items))
	for _, item := range l.items {
		if kind == KindAny || item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}
