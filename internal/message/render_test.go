package message

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

// assertKeyOrder checks that the keys appear in the rendered JSON in the
// given relative order.
func assertKeyOrder(t *testing.T, rendered string, keys []string) {
	t.Helper()
	pos := 0
	for _, key := range keys {
		quoted := `"` + key + `"`
		idx := strings.Index(rendered[pos:], quoted)
		if idx < 0 {
			t.Fatalf("key %s missing or out of order in %s", key, rendered)
		}
		pos += idx + len(quoted)
	}
}

func TestViewMarshalOrder(t *testing.T) {
	t.Parallel()

	fragment := Fragment{
		ID:                    10,
		ConversationMessageID: 4,
		Out:                   true,
		PeerID:                ChatPeerBase + 1,
		SenderID:              42,
		Text:                  "deploy 7 now",
		Date:                  1700000000,
		UpdateTime:            1700000100,
		Ref:                   "ad_17",
		RefSource:             "ads",
		Payload:               `{"command":"deploy"}`,
		Attachments:           []Attachment{testPhoto(1)},
		Reply:                 &Fragment{ID: 3, PeerID: ChatPeerBase + 1, SenderID: 43, Text: "older", Date: 1699990000},
		Forwards:              []Fragment{{ID: 2, Attachments: []Attachment{testDoc(5)}}},
		Action:                &Action{Type: ActionChatTitleUpdate, Text: "new title"},
	}
	view := NewView(newTestLogger(), nil, nil, Envelope{Message: fragment})
	view.MatchText(regexp.MustCompile(`deploy (\d+)`))

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rendered := string(data)

	assertKeyOrder(t, rendered, []string{
		"id",
		"conversationMessageId",
		"peerId",
		"peerType",
		"senderId",
		"senderType",
		"createdAt",
		"updatedAt",
		"text",
		"eventType",
		"eventMemberId",
		"eventText",
		"eventEmail",
		"replyMessage",
		"forwards",
		"attachments",
		"messagePayload",
		"isOutbound",
		"referralValue",
		"referralSource",
		"match",
	})

	if !strings.Contains(rendered, `"createdAt":1700000000`) {
		t.Fatalf("createdAt must render as unix seconds: %s", rendered)
	}
	if !strings.Contains(rendered, `"peerType":"chat"`) {
		t.Fatalf("expected chat peer type: %s", rendered)
	}
	if !strings.Contains(rendered, `"isOutbound":true`) {
		t.Fatalf("expected outbound flag: %s", rendered)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("projection must stay valid JSON: %v", err)
	}
	payload, ok := decoded["messagePayload"].(map[string]any)
	if !ok || payload["command"] != "deploy" {
		t.Fatalf("payload must render decoded, got %v", decoded["messagePayload"])
	}
	match, ok := decoded["match"].([]any)
	if !ok || len(match) != 2 || match[1] != "7" {
		t.Fatalf("unexpected match projection: %v", decoded["match"])
	}
}

func TestViewMarshalMinimal(t *testing.T) {
	t.Parallel()

	view := NewView(newTestLogger(), nil, nil, Envelope{Message: Fragment{
		ID:       1,
		PeerID:   15,
		SenderID: 15,
		Text:     "",
		Date:     1700000000,
	}})

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rendered := string(data)

	for _, absent := range []string{"eventType", "replyMessage", "messagePayload", "referralValue", "referralSource", "match"} {
		if strings.Contains(rendered, `"`+absent+`"`) {
			t.Fatalf("key %s must be omitted when unset: %s", absent, rendered)
		}
	}
	if !strings.Contains(rendered, `"forwards":[]`) {
		t.Fatalf("forwards must render as an empty array: %s", rendered)
	}
	if !strings.Contains(rendered, `"attachments":[]`) {
		t.Fatalf("attachments must render as an empty array: %s", rendered)
	}
	if !strings.Contains(rendered, `"isOutbound":false`) {
		t.Fatalf("isOutbound must always render: %s", rendered)
	}
}

func TestViewMarshalAttachmentsWireShape(t *testing.T) {
	t.Parallel()

	fragment := newChatFragment()
	fragment.Attachments = []Attachment{testPhoto(2)}
	view := NewView(newTestLogger(), nil, nil, Envelope{Message: fragment})

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Attachments []map[string]json.RawMessage `json:"attachments"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode projection: %v", err)
	}
	if len(decoded.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(decoded.Attachments))
	}
	if _, ok := decoded.Attachments[0]["photo"]; !ok {
		t.Fatalf("attachment must keep its tagged wire shape: %s", data)
	}
}

func TestEmbeddedMarshal(t *testing.T) {
	t.Parallel()

	embedded := newEmbedded(Fragment{
		ID:                    3,
		ConversationMessageID: 2,
		PeerID:                15,
		SenderID:              16,
		Text:                  "quoted",
		Date:                  1699990000,
		Attachments:           []Attachment{testDoc(5)},
	})
	data, err := json.Marshal(embedded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assertKeyOrder(t, string(data), []string{
		"id",
		"conversationMessageId",
		"peerId",
		"senderId",
		"createdAt",
		"updatedAt",
		"text",
		"attachments",
	})
	if !strings.Contains(string(data), `"createdAt":1699990000`) {
		t.Fatalf("embedded createdAt must render as unix seconds: %s", data)
	}
}
