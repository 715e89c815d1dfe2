package domain

// Raw part discriminators produced by the reasoning collaborator.
const (
	KindSystemPrompt = "system-prompt"
	KindUserPrompt   = "user-prompt"
	KindText         = "text"
	KindToolCall     = "tool-call"
	KindToolReturn   = "tool-return"
	KindRetryPrompt  = "retry-prompt"
	KindUnknown      = "unknown"
)

// RawPart is an unsanitized message part. Only Kind is guaranteed; Content
// may be a string, a BinaryContent, a list mixing both, or anything else.
type RawPart struct {
	Kind       string  `json:"part_kind"`
	Content    any     `json:"content,omitempty"`
	ToolName   *string `json:"tool_name,omitempty"`
	Args       any     `json:"args,omitempty"`
	ToolCallID string  `json:"tool_call_id,omitempty"`
}

// RawMessage is an unsanitized message as returned by the collaborator.
type RawMessage struct {
	Role  Role      `json:"role"`
	Parts []RawPart `json:"parts"`
}

// BinaryContent carries inline binary data such as a rendered map image.
type BinaryContent struct {
	Data      []byte `json:"data"`
	MediaType string `json:"media_type"`
}

// Placeholder is the raw form of an already-scrubbed attachment.
type Placeholder struct {
	Marker string `json:"marker"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Raw converts a sanitized part back into raw form. Sanitizing the result
// yields p again.
func (p Part) Raw() RawPart {
	switch p.Type {
	case PartToolCall:
		args := p.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return RawPart{Kind: KindToolCall, ToolName: StringPtr(p.ToolName), Args: cloneMap(args)}
	case PartToolReturn:
		return RawPart{Kind: KindToolReturn, ToolName: StringPtr(p.ToolName), Content: p.Result}
	case PartAttachment:
		return RawPart{Kind: p.Kind, Content: Placeholder{Marker: p.Marker}}
	default:
		return RawPart{Kind: p.Kind, Content: p.Content}
	}
}

// Raw converts a sanitized message back into raw form.
func (m Message) Raw() RawMessage {
	out := RawMessage{Role: m.Role, Parts: make([]RawPart, len(m.Parts))}
	for i, p := range m.Parts {
		out.Parts[i] = p.Raw()
	}
	return out
}

// RawHistory converts a sanitized history back into raw form.
func RawHistory(h []Message) []RawMessage {
	out := make([]RawMessage, len(h))
	for i, m := range h {
		out[i] = m.Raw()
	}
	return out
}
