// Package message normalizes raw messenger updates into one canonical view
// and aggregates attachment lookup across a message, its quoted reply, and
// its forwarded chain.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChatPeerBase offsets multi-user chat peer ids. Peers above it are chats;
// the chat sequence number is peer_id - ChatPeerBase.
const ChatPeerBase int64 = 2_000_000_000

// PeerKind classifies a peer or sender id.
type PeerKind string

const (
	PeerUser  PeerKind = "user"
	PeerGroup PeerKind = "group"
	PeerChat  PeerKind = "chat"
)

// KindOfPeer classifies an id: chats sit above ChatPeerBase, groups are
// negative, everything else is a user.
func KindOfPeer(id int64) PeerKind {
	switch {
	case id > ChatPeerBase:
		return PeerChat
	case id < 0:
		return PeerGroup
	default:
		return PeerUser
	}
}

// Source tells the normalizer which wire encoding a raw update uses.
type Source string

const (
	// SourceLongPoll marks positional tuple updates from the user long-poll feed.
	SourceLongPoll Source = "longpoll"
	// SourceWebhook marks JSON object updates from callback delivery or the API.
	SourceWebhook Source = "webhook"
)

// BoolInt is a bool that accepts both JSON booleans and 0/1 integers; the
// wire mixes the two encodings across methods and API versions.
type BoolInt bool

// UnmarshalJSON decodes 0, 1, false, and true.
func (b *BoolInt) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "0", "false":
		*b = false
	case "1", "true":
		*b = true
	default:
		return fmt.Errorf("boolint: unexpected value %q", data)
	}
	return nil
}

// MarshalJSON encodes the wire form 0/1.
func (b BoolInt) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Bool returns the plain bool value.
func (b BoolInt) Bool() bool {
	return bool(b)
}

// AttachmentKind is the wire type tag of an attachment variant.
type AttachmentKind string

const (
	// KindAny matches every attachment kind in lookups.
	KindAny          AttachmentKind = ""
	KindPhoto        AttachmentKind = "photo"
	KindVideo        AttachmentKind = "video"
	KindAudio        AttachmentKind = "audio"
	KindDoc          AttachmentKind = "doc"
	KindLink         AttachmentKind = "link"
	KindSticker      AttachmentKind = "sticker"
	KindWall         AttachmentKind = "wall"
	KindWallReply    AttachmentKind = "wall_reply"
	KindMarket       AttachmentKind = "market"
	KindMarketAlbum  AttachmentKind = "market_album"
	KindPoll         AttachmentKind = "poll"
	KindStory        AttachmentKind = "story"
	KindGift         AttachmentKind = "gift"
	KindGraffiti     AttachmentKind = "graffiti"
	KindAudioMessage AttachmentKind = "audio_message"
	KindCall         AttachmentKind = "call"
)

var knownKinds = map[AttachmentKind]struct{}{
	KindPhoto:        {},
	KindVideo:        {},
	KindAudio:        {},
	KindDoc:          {},
	KindLink:         {},
	KindSticker:      {},
	KindWall:         {},
	KindWallReply:    {},
	KindMarket:       {},
	KindMarketAlbum:  {},
	KindPoll:         {},
	KindStory:        {},
	KindGift:         {},
	KindGraffiti:     {},
	KindAudioMessage: {},
	KindCall:         {},
}

// reattachableKinds are the variants the API accepts back by reference.
var reattachableKinds = map[AttachmentKind]struct{}{
	KindPhoto:        {},
	KindVideo:        {},
	KindAudio:        {},
	KindDoc:          {},
	KindWall:         {},
	KindMarket:       {},
	KindMarketAlbum:  {},
	KindPoll:         {},
	KindStory:        {},
	KindGraffiti:     {},
	KindAudioMessage: {},
}

// MediaRef identifies a media object by its owner and id.
type MediaRef struct {
	OwnerID   int64  `json:"owner_id,omitempty"`
	ID        int64  `json:"id,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
}

// Attachment is one tagged variant from a message's attachments array. The
// raw variant payload is retained as delivered; unrecognized tags keep
// their payload so nothing is dropped.
type Attachment struct {
	Kind  AttachmentKind
	Media MediaRef
	Raw   json.RawMessage
}

// UnmarshalJSON splits the {"type": t, t: {...}} wire shape into the tag,
// the raw variant payload, and the media reference when one is present.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode attachment: %w", err)
	}
	var kind string
	if tag, ok := fields["type"]; ok {
		if err := json.Unmarshal(tag, &kind); err != nil {
			return fmt.Errorf("decode attachment type: %w", err)
		}
	}
	a.Kind = AttachmentKind(kind)
	a.Raw = fields[kind]
	a.Media = MediaRef{}
	if len(a.Raw) > 0 {
		// Reference fields are best effort; variants without them
		// (stickers, links) simply stay non-reattachable.
		_ = json.Unmarshal(a.Raw, &a.Media)
	}
	return nil
}

// MarshalJSON restores the {"type": t, t: {...}} wire shape.
func (a Attachment) MarshalJSON() ([]byte, error) {
	variant := a.Raw
	if len(variant) == 0 {
		encoded, err := json.Marshal(a.Media)
		if err != nil {
			return nil, err
		}
		variant = encoded
	}
	tag, err := json.Marshal(string(a.Kind))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	buf.WriteByte(',')
	buf.Write(tag)
	buf.WriteByte(':')
	buf.Write(variant)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsExternal reports whether the wire tag is outside the recognized set.
func (a Attachment) IsExternal() bool {
	_, ok := knownKinds[a.Kind]
	return !ok
}

// CanReattach reports whether the attachment can be re-sent by reference.
func (a Attachment) CanReattach() bool {
	if _, ok := reattachableKinds[a.Kind]; !ok {
		return false
	}
	return a.Media.OwnerID != 0 && a.Media.ID != 0
}

// Reference renders the reattach reference kind<owner>_<id>[_<accessKey>],
// or empty when the attachment cannot be re-attached.
func (a Attachment) Reference() string {
	if !a.CanReattach() {
		return ""
	}
	ref := fmt.Sprintf("%s%d_%d", a.Kind, a.Media.OwnerID, a.Media.ID)
	if a.Media.AccessKey != "" {
		ref += "_" + a.Media.AccessKey
	}
	return ref
}

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place describes a named location attached to a geo point.
type Place struct {
	ID      int64  `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Geo is the location data of a message. Present only on full fragments.
type Geo struct {
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
	Place       *Place      `json:"place,omitempty"`
}

// ActionKind identifies a chat service event.
type ActionKind string

const (
	ActionChatPhotoUpdate      ActionKind = "chat_photo_update"
	ActionChatPhotoRemove      ActionKind = "chat_photo_remove"
	ActionChatCreate           ActionKind = "chat_create"
	ActionChatTitleUpdate      ActionKind = "chat_title_update"
	ActionChatInviteUser       ActionKind = "chat_invite_user"
	ActionChatKickUser         ActionKind = "chat_kick_user"
	ActionChatPinMessage       ActionKind = "chat_pin_message"
	ActionChatUnpinMessage     ActionKind = "chat_unpin_message"
	ActionChatInviteUserByLink ActionKind = "chat_invite_user_by_link"
)

// Action is the service event carried by chat system messages.
type Action struct {
	Type     ActionKind `json:"type"`
	MemberID int64      `json:"member_id,omitempty"`
	Text     string     `json:"text,omitempty"`
	Email    string     `json:"email,omitempty"`
}

// ButtonKind is a keyboard button type the client can render.
type ButtonKind string

const (
	ButtonText     ButtonKind = "text"
	ButtonVKPay    ButtonKind = "vkpay"
	ButtonOpenApp  ButtonKind = "open_app"
	ButtonLocation ButtonKind = "location"
	ButtonOpenLink ButtonKind = "open_link"
	ButtonCallback ButtonKind = "callback"
)

// ClientCapabilities mirrors the client_info block of an enriched update and
// describes what the delivering client can render.
type ClientCapabilities struct {
	ButtonActions  []ButtonKind `json:"button_actions"`
	Keyboard       bool         `json:"keyboard"`
	InlineKeyboard bool         `json:"inline_keyboard"`
	Carousel       bool         `json:"carousel"`
	LangID         int          `json:"lang_id"`
}

// DefaultCapabilities is the synthesized client_info for updates that arrive
// without one: plain text buttons and a regular keyboard, nothing else.
func DefaultCapabilities() ClientCapabilities {
	return ClientCapabilities{
		ButtonActions: []ButtonKind{ButtonText},
		Keyboard:      true,
	}
}

// Fragment is one message's normalized data record, direct or embedded as a
// reply or forward. Field presence depends on the wire source; stubs from
// the long-poll feed fill only a subset.
type Fragment struct {
	ID                    int64        `json:"id"`
	ConversationMessageID int64        `json:"conversation_message_id,omitempty"`
	Out                   BoolInt      `json:"out"`
	PeerID                int64        `json:"peer_id"`
	SenderID              int64        `json:"from_id"`
	Text                  string       `json:"text"`
	Date                  int64        `json:"date"`
	UpdateTime            int64        `json:"update_time,omitempty"`
	RandomID              int64        `json:"random_id,omitempty"`
	Ref                   string       `json:"ref,omitempty"`
	RefSource             string       `json:"ref_source,omitempty"`
	Attachments           []Attachment `json:"attachments,omitempty"`
	Important             BoolInt      `json:"important,omitempty"`
	Geo                   *Geo         `json:"geo,omitempty"`
	Payload               string       `json:"payload,omitempty"`
	Reply                 *Fragment    `json:"reply_message,omitempty"`
	Forwards              []Fragment   `json:"fwd_messages,omitempty"`
	Action                *Action      `json:"action,omitempty"`
}

// Envelope is the canonical normalized update: one fragment plus the client
// capability metadata it arrived with.
type Envelope struct {
	Message      Fragment           `json:"message"`
	Capabilities ClientCapabilities `json:"client_info"`
}
