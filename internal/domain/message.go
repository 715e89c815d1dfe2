package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// PartType is the discriminator of a sanitized Part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolReturn PartType = "tool-return"
	PartAttachment PartType = "attachment"
)

// AttachmentMarker is the fixed text stored in place of any non-text content.
const AttachmentMarker = "[Image attached]"

// Part is one element of a sanitized message. Type selects which fields are
// meaningful:
//
//	text        Kind, Content
//	tool-call   ToolName, Arguments
//	tool-return ToolName, Result
//	attachment  Kind, Marker
type Part struct {
	Type      PartType
	Kind      string
	Content   string
	ToolName  string
	Arguments map[string]any
	Result    string
	Marker    string
}

// TextPart returns a text part that keeps the raw discriminator kind.
func TextPart(kind, content string) Part {
	return Part{Type: PartText, Kind: kind, Content: content}
}

// ToolCallPart returns a tool invocation part. A nil args map becomes empty.
func ToolCallPart(name string, args map[string]any) Part {
	if args == nil {
		args = map[string]any{}
	}
	return Part{Type: PartToolCall, ToolName: name, Arguments: args}
}

// ToolReturnPart returns the plain text outcome of a tool invocation.
func ToolReturnPart(name, result string) Part {
	return Part{Type: PartToolReturn, ToolName: name, Result: result}
}

// AttachmentPart returns a placeholder for non-text content of the given kind.
func AttachmentPart(kind string) Part {
	return Part{Type: PartAttachment, Kind: kind, Marker: AttachmentMarker}
}

// Clone returns a deep copy of p.
func (p Part) Clone() Part {
	if p.Arguments != nil {
		p.Arguments = cloneMap(p.Arguments)
	}
	return p
}

func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartText:
		return json.Marshal(struct {
			Type    PartType `json:"type"`
			Kind    string   `json:"kind"`
			Content string   `json:"content"`
		}{p.Type, p.Kind, p.Content})
	case PartToolCall:
		args := p.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return json.Marshal(struct {
			Type      PartType       `json:"type"`
			ToolName  string         `json:"tool_name"`
			Arguments map[string]any `json:"arguments"`
		}{p.Type, p.ToolName, args})
	case PartToolReturn:
		return json.Marshal(struct {
			Type     PartType `json:"type"`
			ToolName string   `json:"tool_name"`
			Result   string   `json:"result"`
		}{p.Type, p.ToolName, p.Result})
	case PartAttachment:
		return json.Marshal(struct {
			Type   PartType `json:"type"`
			Kind   string   `json:"kind"`
			Marker string   `json:"marker"`
		}{p.Type, p.Kind, p.Marker})
	default:
		return nil, fmt.Errorf("domain: cannot encode part of type %q", p.Type)
	}
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var w struct {
		Type      PartType       `json:"type"`
		Kind      string         `json:"kind"`
		Content   string         `json:"content"`
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
		Result    string         `json:"result"`
		Marker    string         `json:"marker"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case PartText:
		*p = Part{Type: w.Type, Kind: w.Kind, Content: w.Content}
	case PartToolCall:
		*p = Part{Type: w.Type, ToolName: w.ToolName, Arguments: w.Arguments}
	case PartToolReturn:
		*p = Part{Type: w.Type, ToolName: w.ToolName, Result: w.Result}
	case PartAttachment:
		*p = Part{Type: w.Type, Kind: w.Kind, Marker: w.Marker}
	default:
		return fmt.Errorf("domain: unknown part type %q", w.Type)
	}
	return nil
}

// Message is one turn's contribution to a conversation.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p.Clone()
		}
	}
	return out
}

// CloneHistory deep-copies a message sequence. A nil history stays nil.
func CloneHistory(h []Message) []Message {
	if h == nil {
		return nil
	}
	out := make([]Message, len(h))
	for i, m := range h {
		out[i] = m.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
