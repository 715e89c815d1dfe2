package schema

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soyeahso/forager/internal/domain"
)

const (
	fieldAgentID = "agentID"
	fieldMapData = "mapData"
)

// ValidateTurnRequest decodes an inbound turn body. The agentID field is
// required and must coerce to an integer. mapData, when present, is decoded
// from base64 into the attachment and removed from the world state; every
// other field is forwarded untouched.
func ValidateTurnRequest(body []byte) (domain.TurnRequest, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return domain.TurnRequest{}, err
	}

	rawID, ok := fields[fieldAgentID]
	if !ok {
		return domain.TurnRequest{}, fmt.Errorf("%w: %s", ErrMissingField, fieldAgentID)
	}
	id, err := coerceID(rawID)
	if err != nil {
		return domain.TurnRequest{}, err
	}

	req := domain.TurnRequest{AgentID: id}
	if rawMap, ok := fields[fieldMapData]; ok {
		delete(fields, fieldMapData)
		req.Attachment, err = decodeAttachment(rawMap)
		if err != nil {
			return domain.TurnRequest{}, err
		}
	}

	req.State = make(map[string]any, len(fields))
	for k, v := range fields {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return domain.TurnRequest{}, fmt.Errorf("%w: field %s: %v", ErrInvalidBody, k, err)
		}
		req.State[k] = val
	}
	return req, nil
}

// MapUpload is a standalone map image upload.
type MapUpload struct {
	AgentID domain.EntityID
	Image   []byte
}

// ValidateMapRequest decodes a map upload body with map_base64 and agent_id.
func ValidateMapRequest(body []byte) (MapUpload, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return MapUpload{}, err
	}
	rawImage, ok := fields["map_base64"]
	if !ok {
		return MapUpload{}, fmt.Errorf("%w: map_base64", ErrMissingField)
	}
	rawID, ok := fields["agent_id"]
	if !ok {
		return MapUpload{}, fmt.Errorf("%w: agent_id", ErrMissingField)
	}
	id, err := coerceID(rawID)
	if err != nil {
		return MapUpload{}, err
	}
	img, err := decodeAttachment(rawImage)
	if err != nil {
		return MapUpload{}, err
	}
	if len(img) == 0 {
		return MapUpload{}, fmt.Errorf("%w: map_base64", ErrMissingField)
	}
	return MapUpload{AgentID: id, Image: img}, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidBody)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidBody)
	}
	return fields, nil
}

// coerceID accepts JSON integers, integral floats and decimal strings.
func coerceID(raw json.RawMessage) (domain.EntityID, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}

	switch t := v.(type) {
	case json.Number:
		return numberToID(t.String())
	case string:
		return numberToID(strings.TrimSpace(t))
	case nil:
		return 0, fmt.Errorf("%w: %s is null", ErrMissingField, fieldAgentID)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidIdentifier, v)
	}
}

func numberToID(s string) (domain.EntityID, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return domain.EntityID(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidIdentifier, s)
	}
	return domain.EntityID(int64(f)), nil
}

func decodeAttachment(raw json.RawMessage) ([]byte, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: expected a base64 string", ErrInvalidAttachment)
	}
	if s == nil || *s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(stripDataURL(*s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttachment, err)
	}
	return data, nil
}

// stripDataURL drops a "data:image/png;base64," prefix if present.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
