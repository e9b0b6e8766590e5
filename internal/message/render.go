package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
)

type jsonField struct {
	key   string
	value any
}

// marshalOrdered writes the fields as a JSON object in the given order.
// encoding/json sorts map keys, so the projection builds the object by hand.
func marshalOrdered(fields []jsonField) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.key)
		if err != nil {
			return nil, fmt.Errorf("encode key %s: %w", field.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(field.value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", field.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the fixed-order projection consumers diff and log
// against. The scalar identity block always comes first, event fields and
// the quoted message slot in before forwards and attachments, and optional
// trailing fields appear only when set.
func (v *View) MarshalJSON() ([]byte, error) {
	fields := []jsonField{
		{"id", v.ID()},
		{"conversationMessageId", v.ConversationMessageID()},
		{"peerId", v.PeerID()},
		{"peerType", v.PeerKind()},
		{"senderId", v.SenderID()},
		{"senderType", v.SenderKind()},
		{"createdAt", v.envelope.Message.Date},
		{"updatedAt", v.envelope.Message.UpdateTime},
		{"text", v.Text()},
	}
	if action, ok := v.Action(); ok {
		fields = append(fields,
			jsonField{"eventType", action.Type},
			jsonField{"eventMemberId", action.MemberID},
			jsonField{"eventText", action.Text},
			jsonField{"eventEmail", action.Email},
		)
	}
	if v.reply != nil {
		fields = append(fields, jsonField{"replyMessage", v.reply})
	}
	forwards := v.forwards
	if forwards == nil {
		forwards = ForwardChain{}
	}
	fields = append(fields,
		jsonField{"forwards", forwards},
		jsonField{"attachments", v.attachments.FindAttachments(KindAny)},
	)
	if payload, ok := v.Payload(); ok {
		fields = append(fields, jsonField{"messagePayload", payload})
	}
	fields = append(fields, jsonField{"isOutbound", v.IsOutbound()})
	if value, source := v.Referral(); value != "" {
		fields = append(fields,
			jsonField{"referralValue", value},
			jsonField{"referralSource", source},
		)
	}
	if v.match != nil {
		fields = append(fields, jsonField{"match", v.match})
	}
	return marshalOrdered(fields)
}

// MarshalJSON renders an embedded message with the same camelCase keys as
// the view projection, minus the view-only fields.
func (e *Embedded) MarshalJSON() ([]byte, error) {
	return marshalOrdered([]jsonField{
		{"id", e.ID()},
		{"conversationMessageId", e.ConversationMessageID()},
		{"peerId", e.PeerID()},
		{"senderId", e.SenderID()},
		{"createdAt", e.fragment.Date},
		{"updatedAt", e.fragment.UpdateTime},
		{"text", e.Text()},
		{"attachments", e.attachments.FindAttachments(KindAny)},
	})
}

// LogValue keeps view log records compact.
func (v *View) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", v.ID()),
		slog.Int64("peer_id", v.PeerID()),
		slog.String("peer_type", string(v.PeerKind())),
		slog.Int64("sender_id", v.SenderID()),
		slog.Bool("outbound", v.IsOutbound()),
		slog.Bool("filled", v.filled),
		slog.Int("attachments", v.attachments.Len()),
	)
}
