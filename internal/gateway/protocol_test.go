package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	f, err := NewRequest("r1", "session.get", map[string]any{"entityId": 7})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, f.Type)
	assert.Equal(t, "r1", f.ID)
	assert.Equal(t, "session.get", f.Method)
	assert.JSONEq(t, `{"entityId":7}`, string(f.Params))
}

func TestNewResponse(t *testing.T) {
	f, err := NewResponse("r1", map[string]string{"status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeResponse, f.Type)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
	assert.Nil(t, f.Error)
	assert.JSONEq(t, `{"status":"ok"}`, string(f.Payload))
}

func TestNewErrorResponse(t *testing.T) {
	f := NewErrorResponse("r2", ErrorShape{Code: "not_found", Message: "entity not registered"})
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "res",
		"id": "r2",
		"ok": false,
		"error": {"code": "not_found", "message": "entity not registered"}
	}`, string(data))
}

func TestNewEvent(t *testing.T) {
	f, err := NewEvent(EventTurnCompleted, TurnEvent{EntityID: 3, HistoryLen: 4}, 9)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, f.Type)
	assert.Equal(t, EventTurnCompleted, f.Event)
	assert.Equal(t, int64(9), f.Seq)
	assert.JSONEq(t, `{"entityId":3,"historyLen":4}`, string(f.Payload))
}

func TestConnectParams_OmitsNilAuth(t *testing.T) {
	data, err := json.Marshal(ConnectParams{Client: ClientInfo{ID: "viewer"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client":{"id":"viewer"}}`, string(data))
}
