package message

// ForwardChain is the ordered list of messages forwarded inside a parent
// message. Lookup aggregates each element's own attachments in chain order
// and does not descend into an element's nested forwards; deeper levels are
// reached by walking the elements.
type ForwardChain []*Embedded

func newForwardChain(fragments []Fragment) ForwardChain {
	if len(fragments) == 0 {
		return nil
	}
	chain := make(ForwardChain, len(fragments))
	for i, fragment := range fragments {
		chain[i] = newEmbedded(fragment)
	}
	return chain
}

// Len returns the number of forwarded messages.
func (c ForwardChain) Len() int {
	return len(c)
}

// HasAttachments reports whether any chain element carries a matching
// attachment at the first level.
func (c ForwardChain) HasAttachments(kind AttachmentKind) bool {
	for _, fwd := range c {
		if fwd.HasAttachments(kind) {
			return true
		}
	}
	return false
}

// FindAttachments concatenates matches element by element in chain order.
func (c ForwardChain) FindAttachments(kind AttachmentKind) []Attachment {
	out := make([]Attachment, 0, len(c))
	for _, fwd := range c {
		out = append(out, fwd.FindAttachments(kind)...)
	}
	return out
}
