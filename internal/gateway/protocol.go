package gateway

import "encoding/json"

// Frame types for the WebSocket observer protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Event names pushed to observers.
const (
	EventConnectChallenge = "connect.challenge"
	EventTurnCompleted    = "turn.completed"
	EventTurnFailed       = "turn.failed"
	EventSessionNew       = "session.registered"
	EventMapReceived      = "map.received"
)

// Frame is the envelope of every WebSocket message. Type selects the
// request, response or event fields.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the error body of a failed response frame.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams are sent by an observer in its "connect" request.
type ConnectParams struct {
	Client ClientInfo   `json:"client"`
	Auth   *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies an observer, typically the simulation's debug view.
type ClientInfo struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// HelloOK is the response to a successful connect.
type HelloOK struct {
	Protocol int      `json:"protocol"`
	Server   string   `json:"server"`
	ConnID   string   `json:"connId"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// TurnEvent is the payload of turn.completed and turn.failed.
type TurnEvent struct {
	EntityID   int64  `json:"entityId"`
	Action     any    `json:"action,omitempty"`
	HistoryLen int    `json:"historyLen,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &errShape}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}

// ProtocolVersion is the observer protocol version.
const ProtocolVersion = 1
