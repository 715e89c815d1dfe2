package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/soyeahso/forager/internal/domain"
)

type responseWire struct {
	Reasoning            *string          `json:"reasoning"`
	EatCurrentFoodSupply *bool            `json:"eatCurrentFoodSupply"`
	NextAction           *string          `json:"next_action"`
	Location             *json.RawMessage `json:"location"`
}

type locationWire struct {
	X *float64 `json:"x"`
	Z *float64 `json:"z"`
}

// ValidateResponse decodes the collaborator's structured action. Unknown
// fields are rejected; a surrounding markdown code fence is tolerated.
func ValidateResponse(raw []byte) (domain.StructuredAction, error) {
	body := []byte(stripCodeFence(string(raw)))

	var w responseWire
	if err := strictDecode(body, &w); err != nil {
		return domain.StructuredAction{}, mismatch("", "%v", err)
	}

	if w.Reasoning == nil {
		return domain.StructuredAction{}, mismatch("reasoning", "field required")
	}
	if w.EatCurrentFoodSupply == nil {
		return domain.StructuredAction{}, mismatch("eatCurrentFoodSupply", "field required")
	}
	if w.NextAction == nil {
		return domain.StructuredAction{}, mismatch("next_action", "field required")
	}
	action := domain.Action(*w.NextAction)
	if !action.Valid() {
		return domain.StructuredAction{}, mismatch("next_action", "%q is not one of %v", *w.NextAction, domain.Actions())
	}

	out := domain.StructuredAction{
		Reasoning:            *w.Reasoning,
		EatCurrentFoodSupply: *w.EatCurrentFoodSupply,
		NextAction:           action,
	}
	if w.Location != nil && string(*w.Location) != "null" {
		var loc locationWire
		if err := strictDecode(*w.Location, &loc); err != nil {
			return domain.StructuredAction{}, mismatch("location", "%v", err)
		}
		if loc.X == nil || loc.Z == nil {
			return domain.StructuredAction{}, mismatch("location", "x and z are required")
		}
		out.Location = &domain.Location{X: *loc.X, Z: *loc.Z}
	}
	return out, nil
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
