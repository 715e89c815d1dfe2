package schema

import (
	"fmt"

	"github.com/soyeahso/forager/internal/domain"
)

// ValidateHistory checks that a sanitized history is fit to be stored.
func ValidateHistory(history []domain.Message) error {
	for i, msg := range history {
		path := fmt.Sprintf("history[%d]", i)
		if !msg.Role.Valid() {
			return mismatch(path+".role", "unknown role %q", msg.Role)
		}
		if len(msg.Parts) == 0 {
			return mismatch(path+".parts", "message has no parts")
		}
		for j, p := range msg.Parts {
			if err := validatePart(fmt.Sprintf("%s.parts[%d]", path, j), p); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePart(path string, p domain.Part) error {
	switch p.Type {
	case domain.PartText:
		if p.Kind == "" {
			return mismatch(path+".kind", "text part has no kind")
		}
	case domain.PartToolCall:
		if p.ToolName == "" {
			return mismatch(path+".tool_name", "tool call has no name")
		}
		if p.Arguments == nil {
			return mismatch(path+".arguments", "tool call has no arguments")
		}
	case domain.PartToolReturn:
		if p.ToolName == "" {
			return mismatch(path+".tool_name", "tool return has no name")
		}
	case domain.PartAttachment:
		if p.Kind == "" {
			return mismatch(path+".kind", "attachment has no kind")
		}
		if p.Marker != domain.AttachmentMarker {
			return mismatch(path+".marker", "attachment is not a placeholder")
		}
	default:
		return mismatch(path+".type", "unknown part type %q", p.Type)
	}
	return nil
}
