// Package longpoll decodes the positional update tuples of the user
// long-poll feed into message fragments. Session management (server
// negotiation, the ts cursor loop) is out of scope; the decoder is a pure
// function over a single tuple.
package longpoll

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vkgate/vkgate/internal/message"
)

// EventNewMessage is the long-poll event code for a new message.
const EventNewMessage int64 = 4

// Message flag bits of the long-poll flags field.
const (
	flagUnread    int64 = 1 << 0
	flagOutbox    int64 = 1 << 1
	flagImportant int64 = 1 << 3
)

var _ message.TupleDecoder = DecodeMessage

// DecodeMessage maps one new-message tuple onto a stub-grade fragment.
// Layout: [4, id, flags, peer_id, ts, text, extra?, attach?, random_id?].
// The feed leaves most fragment fields unset; the view's promote path is
// how they fill in later.
func DecodeMessage(tuple []json.RawMessage) (message.Fragment, error) {
	if len(tuple) < 6 {
		return message.Fragment{}, fmt.Errorf("message tuple needs at least 6 items, got %d", len(tuple))
	}
	code, err := decodeInt(tuple[0], "event code")
	if err != nil {
		return message.Fragment{}, err
	}
	if code != EventNewMessage {
		return message.Fragment{}, fmt.Errorf("unsupported long poll event %d", code)
	}
	id, err := decodeInt(tuple[1], "message id")
	if err != nil {
		return message.Fragment{}, err
	}
	flags, err := decodeInt(tuple[2], "flags")
	if err != nil {
		return message.Fragment{}, err
	}
	peerID, err := decodeInt(tuple[3], "peer id")
	if err != nil {
		return message.Fragment{}, err
	}
	date, err := decodeInt(tuple[4], "timestamp")
	if err != nil {
		return message.Fragment{}, err
	}
	text, err := decodeString(tuple[5], "text")
	if err != nil {
		return message.Fragment{}, err
	}

	// The feed encodes newlines as <br>; entity unescaping happens in the
	// normalizer.
	text = strings.ReplaceAll(text, "<br>", "\n")

	fragment := message.Fragment{
		ID:        id,
		Out:       message.BoolInt(flags&flagOutbox != 0),
		PeerID:    peerID,
		Date:      date,
		Text:      text,
		Important: message.BoolInt(flags&flagImportant != 0),
	}
	if message.KindOfPeer(peerID) != message.PeerChat && !fragment.Out.Bool() {
		fragment.SenderID = peerID
	}

	if len(tuple) > 6 {
		if err := applyExtra(&fragment, tuple[6]); err != nil {
			return message.Fragment{}, err
		}
	}
	if len(tuple) > 7 {
		var attach map[string]string
		if err := json.Unmarshal(tuple[7], &attach); err != nil {
			return message.Fragment{}, fmt.Errorf("decode tuple attachments: %w", err)
		}
		fragment.Attachments = summaryAttachments(attach)
	}
	if len(tuple) > 8 {
		randomID, err := decodeInt(tuple[8], "random id")
		if err != nil {
			return message.Fragment{}, err
		}
		fragment.RandomID = randomID
	}
	return fragment, nil
}

// applyExtra reads the optional extra object: the chat sender id (a string
// on the wire) and a bot payload when one was sent.
func applyExtra(fragment *message.Fragment, raw json.RawMessage) error {
	var extra struct {
		From    string `json:"from"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return fmt.Errorf("decode tuple extra: %w", err)
	}
	if extra.From != "" {
		from, err := strconv.ParseInt(extra.From, 10, 64)
		if err != nil {
			return fmt.Errorf("decode tuple sender: %w", err)
		}
		fragment.SenderID = from
	}
	if extra.Payload != "" {
		fragment.Payload = extra.Payload
	}
	return nil
}

// summaryAttachments rebuilds reference-only descriptors from the attachN
// summary keys. Summaries that do not parse as owner_id references
// (stickers carry a bare product id) are skipped; promotion recovers them.
func summaryAttachments(attach map[string]string) []message.Attachment {
	var out []message.Attachment
	for i := 1; ; i++ {
		ref, ok := attach["attach"+strconv.Itoa(i)]
		if !ok {
			break
		}
		kind := attach["attach"+strconv.Itoa(i)+"_type"]
		media, err := parseMediaRef(ref)
		if err != nil {
			continue
		}
		out = append(out, message.Attachment{
			Kind:  message.AttachmentKind(kind),
			Media: media,
		})
	}
	return out
}

func parseMediaRef(ref string) (message.MediaRef, error) {
	parts := strings.Split(ref, "_")
	if len(parts) < 2 {
		return message.MediaRef{}, fmt.Errorf("short media ref %q", ref)
	}
	owner, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return message.MediaRef{}, fmt.Errorf("parse media owner in %q: %w", ref, err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return message.MediaRef{}, fmt.Errorf("parse media id in %q: %w", ref, err)
	}
	return message.MediaRef{OwnerID: owner, ID: id}, nil
}

func decodeInt(raw json.RawMessage, what string) (int64, error) {
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("decode tuple %s: %w", what, err)
	}
	return value, nil
}

func decodeString(raw json.RawMessage, what string) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("decode tuple %s: %w", what, err)
	}
	return value, nil
}
