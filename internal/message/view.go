package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// View is the unified message surface built over a normalized envelope. A
// view is either a stub (sparse long-poll record) or full (webhook or API
// sourced); stubs upgrade through Promote. A View is not safe for concurrent
// use; callers coordinating Promote with accessors own that locking.
type View struct {
	logger  *slog.Logger
	api     Caller
	uploads Uploader

	envelope Envelope
	filled   bool

	attachments AttachmentList
	reply       *Embedded
	forwards    ForwardChain

	payload       any
	hasPayload    bool
	payloadParsed bool

	match []string
}

// NewView builds a fully loaded view over a normalized envelope.
func NewView(log *slog.Logger, api Caller, uploads Uploader, env Envelope) *View {
	return newView(log, api, uploads, env, true)
}

// NewStub builds a partially loaded view over a sparse long-poll envelope.
// Full-only accessors fail with ErrPayloadIncomplete until Promote succeeds.
func NewStub(log *slog.Logger, api Caller, uploads Uploader, env Envelope) *View {
	return newView(log, api, uploads, env, false)
}

func newView(log *slog.Logger, api Caller, uploads Uploader, env Envelope, filled bool) *View {
	if log == nil {
		log = slog.Default()
	}
	v := &View{
		logger:   log,
		api:      api,
		uploads:  uploads,
		envelope: env,
		filled:   filled,
	}
	v.rebuild()
	return v
}

// rebuild recreates the derived sub-views and caches after the fragment
// changes.
func (v *View) rebuild() {
	fragment := v.envelope.Message
	v.attachments = NewAttachmentList(fragment.Attachments)
	if fragment.Reply != nil {
		v.reply = newEmbedded(*fragment.Reply)
	} else {
		v.reply = nil
	}
	v.forwards = newForwardChain(fragment.Forwards)
	v.payload = nil
	v.hasPayload = false
	v.payloadParsed = false
	v.match = nil
}

// Filled reports whether the view carries the complete fragment.
func (v *View) Filled() bool {
	return v.filled
}

// ID returns the message id, zero for records the long-poll feed delivered
// without one.
func (v *View) ID() int64 {
	return v.envelope.Message.ID
}

// ConversationMessageID returns the conversation-scoped id.
func (v *View) ConversationMessageID() int64 {
	return v.envelope.Message.ConversationMessageID
}

// PeerID returns the conversation peer id.
func (v *View) PeerID() int64 {
	return v.envelope.Message.PeerID
}

// SenderID returns the author id.
func (v *View) SenderID() int64 {
	return v.envelope.Message.SenderID
}

// RandomID returns the idempotency token the message was sent with.
func (v *View) RandomID() int64 {
	return v.envelope.Message.RandomID
}

// Text returns the message body.
func (v *View) Text() string {
	return v.envelope.Message.Text
}

// CreatedAt returns the creation time in UTC, zero when unknown.
func (v *View) CreatedAt() time.Time {
	if v.envelope.Message.Date == 0 {
		return time.Time{}
	}
	return time.Unix(v.envelope.Message.Date, 0).UTC()
}

// UpdatedAt returns the last edit time in UTC, zero if never edited.
func (v *View) UpdatedAt() time.Time {
	if v.envelope.Message.UpdateTime == 0 {
		return time.Time{}
	}
	return time.Unix(v.envelope.Message.UpdateTime, 0).UTC()
}

// Referral returns the ref and ref_source values carried by the message.
func (v *View) Referral() (value, source string) {
	return v.envelope.Message.Ref, v.envelope.Message.RefSource
}

// Capabilities returns the client capability metadata of the envelope.
func (v *View) Capabilities() ClientCapabilities {
	return v.envelope.Capabilities
}

// Action returns the chat service event, ok=false for regular messages.
func (v *View) Action() (Action, bool) {
	if v.envelope.Message.Action == nil {
		return Action{}, false
	}
	return *v.envelope.Message.Action, true
}

// Geo returns the message location. Stub views fail with
// ErrPayloadIncomplete even when the sparse fragment happens to carry geo
// data, so callers never act on half-delivered locations.
func (v *View) Geo() (*Geo, error) {
	if !v.filled {
		return nil, ErrPayloadIncomplete
	}
	if v.envelope.Message.Geo == nil {
		return nil, nil
	}
	geo := *v.envelope.Message.Geo
	return &geo, nil
}

// PeerKind classifies the conversation peer.
func (v *View) PeerKind() PeerKind {
	return KindOfPeer(v.PeerID())
}

// SenderKind classifies the author.
func (v *View) SenderKind() PeerKind {
	return KindOfPeer(v.SenderID())
}

// ChatID returns the chat sequence number derived from the peer id. It is
// meaningful only when IsChat reports true.
func (v *View) ChatID() int64 {
	return v.PeerID() - ChatPeerBase
}

// HasText reports whether the message carries a body.
func (v *View) HasText() bool {
	return v.envelope.Message.Text != ""
}

// HasReplyMessage reports whether the message quotes another one.
func (v *View) HasReplyMessage() bool {
	return v.reply != nil
}

// HasForwards reports whether the message carries forwarded messages.
func (v *View) HasForwards() bool {
	return len(v.forwards) > 0
}

// HasGeo reports whether the fragment carries location data. Reading it
// still requires a full view; see Geo.
func (v *View) HasGeo() bool {
	return v.envelope.Message.Geo != nil
}

// IsChat reports whether the peer is a multi-user chat.
func (v *View) IsChat() bool {
	return v.PeerKind() == PeerChat
}

// IsFromUser reports whether the conversation peer is a user.
func (v *View) IsFromUser() bool {
	return v.PeerKind() == PeerUser
}

// IsFromGroup reports whether the conversation peer is a group.
func (v *View) IsFromGroup() bool {
	return v.PeerKind() == PeerGroup
}

// IsUser reports whether the author is a user.
func (v *View) IsUser() bool {
	return v.SenderKind() == PeerUser
}

// IsGroup reports whether the author is a group.
func (v *View) IsGroup() bool {
	return v.SenderKind() == PeerGroup
}

// IsEvent reports whether the message is a chat service event.
func (v *View) IsEvent() bool {
	return v.envelope.Message.Action != nil
}

// IsOutbound reports whether the message was sent by this side.
func (v *View) IsOutbound() bool {
	return bool(v.envelope.Message.Out)
}

// IsInbound reports whether the message was received from the peer.
func (v *View) IsInbound() bool {
	return !v.IsOutbound()
}

// IsImportant reports whether the message is flagged important.
func (v *View) IsImportant() bool {
	return bool(v.envelope.Message.Important)
}

// Payload returns the bot payload decoded from its JSON string form. The
// string is decoded once and the result cached; absent or invalid JSON
// reports no payload rather than an error.
func (v *View) Payload() (any, bool) {
	if !v.payloadParsed {
		v.payloadParsed = true
		if raw := v.envelope.Message.Payload; raw != "" {
			var decoded any
			if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
				v.payload = decoded
				v.hasPayload = true
			}
		}
	}
	return v.payload, v.hasPayload
}

// HasPayload reports whether the message carries a decodable bot payload.
func (v *View) HasPayload() bool {
	_, ok := v.Payload()
	return ok
}

// AttachmentList returns only the view's own attachments.
func (v *View) AttachmentList() AttachmentList {
	return v.attachments
}

// ReplyMessage returns the quoted message, nil when nothing is quoted.
func (v *View) ReplyMessage() *Embedded {
	return v.reply
}

// Forwards returns the forwarded message chain.
func (v *View) Forwards() ForwardChain {
	return v.forwards
}

// HasAttachments aggregates over the view's own attachments, the reply, and
// the forward chain, in that order.
func (v *View) HasAttachments(kind AttachmentKind) bool {
	if v.attachments.HasAttachments(kind) {
		return true
	}
	if v.reply != nil && v.reply.HasAttachments(kind) {
		return true
	}
	return v.forwards.HasAttachments(kind)
}

// FindAttachments returns matches from the view's own attachments first,
// then the reply's, then the forward chain's. Consumers rely on own
// attachments coming first.
func (v *View) FindAttachments(kind AttachmentKind) []Attachment {
	out := v.attachments.FindAttachments(kind)
	if v.reply != nil {
		out = append(out, v.reply.FindAttachments(kind)...)
	}
	return append(out, v.forwards.FindAttachments(kind)...)
}

// MatchText evaluates re against the message text, stores the submatch list
// for the serialized projection, and returns it. Nil when nothing matches.
func (v *View) MatchText(re *regexp.Regexp) []string {
	v.match = re.FindStringSubmatch(v.Text())
	return v.match
}

// Promote fetches the complete fragment and upgrades the view to full.
// Promoting an already full view is a no-op unless force is set. The lookup
// path follows the id: direct when the message id is known, conversation
// scoped otherwise.
func (v *View) Promote(ctx context.Context, force bool) error {
	if v.filled && !force {
		return nil
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	fragment := v.envelope.Message
	var (
		raw json.RawMessage
		err error
	)
	if fragment.ID != 0 {
		raw, err = v.api.Call(ctx, "messages.getById", Params{
			"message_ids": fragment.ID,
			"extended":    true,
		})
	} else {
		raw, err = v.api.Call(ctx, "messages.getByConversationMessageId", Params{
			"peer_id":                  fragment.PeerID,
			"conversation_message_ids": fragment.ConversationMessageID,
			"extended":                 true,
		})
	}
	if err != nil {
		return err
	}
	var page struct {
		Items []Fragment `json:"items"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("decode message page: %w", err)
	}
	if len(page.Items) == 0 {
		return fmt.Errorf("message not found")
	}
	full := page.Items[0]
	unescapeFragment(&full)
	v.envelope.Message = full
	v.rebuild()
	v.filled = true
	v.logger.Debug("message view promoted", slog.Int64("message_id", full.ID))
	return nil
}

func (v *View) requireAPI() error {
	if v.api == nil {
		return fmt.Errorf("api client is not configured")
	}
	return nil
}

func (v *View) requireUploads() error {
	if v.uploads == nil {
		return fmt.Errorf("upload client is not configured")
	}
	return nil
}

// requireChat guards chat-scoped operations; it runs before any remote call.
func (v *View) requireChat() error {
	if !v.IsChat() {
		return ErrNotChat
	}
	return nil
}
