// Package sanitize turns a collaborator's raw message history into the
// compact form stored in a session. Sanitizing never fails: malformed tool
// calls are defaulted, and any content that is not plain text is replaced
// by a fixed placeholder so no binary payload is ever stored.
package sanitize

import (
	"encoding/json"
	"strings"

	"github.com/soyeahso/forager/internal/domain"
)

// EmptyMessageKind tags the placeholder given to a message with no parts.
const EmptyMessageKind = "placeholder"

const emptyMessageText = "[empty message]"

// DefaultToolCall is the substitute for a tool call missing its name or
// arguments.
func DefaultToolCall() domain.Part {
	return domain.ToolCallPart("unknown", map[string]any{})
}

// History sanitizes every message in order. The result has the same number
// of messages as raw.
func History(raw []domain.RawMessage) []domain.Message {
	out := make([]domain.Message, len(raw))
	for i, m := range raw {
		out[i] = Message(m)
	}
	return out
}

// Message sanitizes one message, keeping its role and part order. Roles are
// copied as given: an unknown role is left for ValidateHistory to reject,
// which fails the turn instead of storing a guessed role.
func Message(raw domain.RawMessage) domain.Message {
	msg := domain.Message{Role: raw.Role, Parts: make([]domain.Part, 0, len(raw.Parts))}
	for _, p := range raw.Parts {
		msg.Parts = append(msg.Parts, Part(p))
	}
	if len(msg.Parts) == 0 {
		msg.Parts = append(msg.Parts, domain.TextPart(EmptyMessageKind, emptyMessageText))
	}
	return msg
}

// Part sanitizes a single raw part.
func Part(raw domain.RawPart) domain.Part {
	kind := raw.Kind
	if kind == "" {
		kind = domain.KindUnknown
	}

	if kind == domain.KindToolCall {
		return toolCall(raw)
	}

	content, ok := raw.Content.(string)
	if !ok {
		return domain.AttachmentPart(kind)
	}
	if kind == domain.KindToolReturn && raw.ToolName != nil && *raw.ToolName != "" {
		return domain.ToolReturnPart(*raw.ToolName, content)
	}
	return domain.TextPart(kind, content)
}

func toolCall(raw domain.RawPart) domain.Part {
	if raw.ToolName == nil || *raw.ToolName == "" {
		return DefaultToolCall()
	}
	args, ok := arguments(raw.Args)
	if !ok {
		return DefaultToolCall()
	}
	return domain.ToolCallPart(*raw.ToolName, args)
}

// arguments accepts an argument object or its JSON string encoding, and
// returns an independent copy. Values keep their type; numbers decoded from
// a JSON string stay exact as json.Number.
func arguments(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return copyArgs(t)
	case string:
		dec := json.NewDecoder(strings.NewReader(t))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil || m == nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

// copyArgs deep-copies arguments, replacing any inline binary with the
// attachment marker. Arguments that cannot be encoded as JSON are rejected.
func copyArgs(m map[string]any) (map[string]any, bool) {
	out := scrub(m).(map[string]any)
	if _, err := json.Marshal(out); err != nil {
		return nil, false
	}
	return out, true
}

func scrub(v any) any {
	switch t := v.(type) {
	case []byte, domain.BinaryContent, *domain.BinaryContent:
		return domain.AttachmentMarker
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = scrub(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = scrub(e)
		}
		return out
	default:
		return v
	}
}
