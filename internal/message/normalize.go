package message

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
)

// Normalizer reconciles the two wire encodings of a message update, the
// positional long-poll tuple and the webhook JSON object, into the canonical
// envelope form.
type Normalizer struct {
	logger      *slog.Logger
	decodeTuple TupleDecoder
}

// NewNormalizer creates a normalizer. decodeTuple handles the long-poll
// positional encoding and may be nil when only webhook updates are expected.
func NewNormalizer(log *slog.Logger, decodeTuple TupleDecoder) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		logger:      log.With(slog.String("service", "normalizer")),
		decodeTuple: decodeTuple,
	}
}

// Normalize turns one raw update into an envelope. Required fragment fields
// are not validated here; sparse fragments surface through the view's
// accessors instead.
func (n *Normalizer) Normalize(raw json.RawMessage, source Source) (Envelope, error) {
	switch source {
	case SourceLongPoll:
		return n.normalizeTuple(raw)
	case SourceWebhook:
		return n.normalizeObject(raw)
	default:
		return Envelope{}, fmt.Errorf("unknown update source %q", source)
	}
}

func (n *Normalizer) normalizeTuple(raw json.RawMessage) (Envelope, error) {
	if n.decodeTuple == nil {
		return Envelope{}, fmt.Errorf("tuple decoder is not configured")
	}
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Envelope{}, fmt.Errorf("decode update tuple: %w", err)
	}
	fragment, err := n.decodeTuple(tuple)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode update tuple: %w", err)
	}
	unescapeFragment(&fragment)
	return Envelope{Message: fragment, Capabilities: DefaultCapabilities()}, nil
}

func (n *Normalizer) normalizeObject(raw json.RawMessage) (Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Envelope{}, fmt.Errorf("decode update object: %w", err)
	}
	// Envelope detection is a key presence check, not schema validation:
	// enriched updates carry client_info next to the message.
	if _, ok := probe["client_info"]; ok {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Envelope{}, fmt.Errorf("decode update envelope: %w", err)
		}
		unescapeFragment(&env.Message)
		return env, nil
	}
	var fragment Fragment
	if err := json.Unmarshal(raw, &fragment); err != nil {
		return Envelope{}, fmt.Errorf("decode message fragment: %w", err)
	}
	n.logger.Debug("bare fragment upgraded with default capabilities", slog.Int64("message_id", fragment.ID))
	unescapeFragment(&fragment)
	return Envelope{Message: fragment, Capabilities: DefaultCapabilities()}, nil
}

// unescapeFragment rewrites HTML entities in the fragment text and in every
// nested reply and forward fragment.
func unescapeFragment(fragment *Fragment) {
	if fragment == nil {
		return
	}
	if fragment.Text != "" {
		fragment.Text = html.UnescapeString(fragment.Text)
	}
	unescapeFragment(fragment.Reply)
	for i := range fragment.Forwards {
		unescapeFragment(&fragment.Forwards[i])
	}
}
