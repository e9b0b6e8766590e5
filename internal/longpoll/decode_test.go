package longpoll

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/vkgate/vkgate/internal/message"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawTuple(t *testing.T, tuple string) []json.RawMessage {
	t.Helper()
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(tuple), &items); err != nil {
		t.Fatalf("parse tuple fixture: %v", err)
	}
	return items
}

func TestDecodeMessageChat(t *testing.T) {
	t.Parallel()

	fragment, err := DecodeMessage(rawTuple(t, `[4, 10, 1, 2000000001, 1700000000, "hello", {"from": "42"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fragment.ID != 10 {
		t.Fatalf("expected id 10, got %d", fragment.ID)
	}
	if fragment.PeerID != message.ChatPeerBase+1 {
		t.Fatalf("unexpected peer id %d", fragment.PeerID)
	}
	if fragment.SenderID != 42 {
		t.Fatalf("chat sender must come from extra, got %d", fragment.SenderID)
	}
	if fragment.Out.Bool() {
		t.Fatalf("flags 1 must decode as inbound")
	}
	if fragment.Date != 1700000000 {
		t.Fatalf("unexpected date %d", fragment.Date)
	}
}

func TestDecodeMessageDirect(t *testing.T) {
	t.Parallel()

	t.Run("inbound sender is the peer", func(t *testing.T) {
		t.Parallel()
		fragment, err := DecodeMessage(rawTuple(t, `[4, 11, 1, 15, 1700000000, "hi"]`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if fragment.SenderID != 15 {
			t.Fatalf("expected sender 15, got %d", fragment.SenderID)
		}
		if fragment.Out.Bool() {
			t.Fatalf("expected inbound")
		}
	})

	t.Run("outbox flag flips direction", func(t *testing.T) {
		t.Parallel()
		fragment, err := DecodeMessage(rawTuple(t, `[4, 12, 3, 15, 1700000000, "hi"]`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !fragment.Out.Bool() {
			t.Fatalf("flags 3 must decode as outbound")
		}
		if fragment.SenderID != 0 {
			t.Fatalf("outbound sender is unknown at this layer, got %d", fragment.SenderID)
		}
	})
}

func TestDecodeMessageImportantFlag(t *testing.T) {
	t.Parallel()

	fragment, err := DecodeMessage(rawTuple(t, `[4, 13, 9, 15, 1700000000, "keep this"]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fragment.Important.Bool() {
		t.Fatalf("flags 9 must set the important flag")
	}
}

func TestDecodeMessageLineBreaks(t *testing.T) {
	t.Parallel()

	fragment, err := DecodeMessage(rawTuple(t, `[4, 14, 1, 15, 1700000000, "line1<br>line2"]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fragment.Text != "line1\nline2" {
		t.Fatalf("expected br converted to newline, got %q", fragment.Text)
	}
}

func TestDecodeMessageAttachSummaries(t *testing.T) {
	t.Parallel()

	fragment, err := DecodeMessage(rawTuple(t, `[4, 15, 1, 15, 1700000000, "", {}, {"attach1_type": "photo", "attach1": "123_456", "attach2_type": "sticker", "attach2": "17", "attach3_type": "doc", "attach3": "-7_9"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fragment.Attachments) != 2 {
		t.Fatalf("expected 2 parsed summaries, got %d", len(fragment.Attachments))
	}
	first := fragment.Attachments[0]
	if first.Kind != message.KindPhoto || first.Media.OwnerID != 123 || first.Media.ID != 456 {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	second := fragment.Attachments[1]
	if second.Kind != message.KindDoc || second.Media.OwnerID != -7 {
		t.Fatalf("unexpected second summary: %+v", second)
	}
}

func TestDecodeMessageRandomIDAndPayload(t *testing.T) {
	t.Parallel()

	fragment, err := DecodeMessage(rawTuple(t, `[4, 16, 3, 15, 1700000000, "", {"payload": "{\"a\":1}"}, {}, 777]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fragment.RandomID != 777 {
		t.Fatalf("expected random id 777, got %d", fragment.RandomID)
	}
	if fragment.Payload != `{"a":1}` {
		t.Fatalf("expected payload passthrough, got %q", fragment.Payload)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tuple string
	}{
		{"too short", `[4, 10]`},
		{"wrong event code", `[8, 10, 1, 15, 1700000000, ""]`},
		{"non-numeric id", `[4, "ten", 1, 15, 1700000000, ""]`},
		{"non-string text", `[4, 10, 1, 15, 1700000000, 5]`},
		{"bad extra", `[4, 10, 1, 15, 1700000000, "", 3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeMessage(rawTuple(t, tt.tuple)); err == nil {
				t.Fatalf("expected decode error for %s", tt.tuple)
			}
		})
	}
}

func TestDecodeMessageThroughNormalizer(t *testing.T) {
	t.Parallel()

	n := message.NewNormalizer(newTestLogger(), DecodeMessage)
	env, err := n.Normalize([]byte(`[4, 10, 1, 2000000001, 1700000000, "deploy &amp; ship", {"from": "42"}]`), message.SourceLongPoll)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	view := message.NewStub(newTestLogger(), nil, nil, env)

	if view.Filled() {
		t.Fatalf("long-poll sourced views start as stubs")
	}
	if !view.IsChat() {
		t.Fatalf("peer 2000000001 must classify as chat")
	}
	if view.ChatID() != 1 {
		t.Fatalf("expected chat id 1, got %d", view.ChatID())
	}
	if !view.Capabilities().Keyboard {
		t.Fatalf("tuple updates must carry the default keyboard capability")
	}
	if view.Capabilities().InlineKeyboard {
		t.Fatalf("default capabilities must not include inline keyboard")
	}
	if view.Text() != "deploy & ship" {
		t.Fatalf("text must unescape through the normalizer, got %q", view.Text())
	}
	if view.SenderID() != 42 {
		t.Fatalf("expected sender 42, got %d", view.SenderID())
	}
}
