package gateway

import "encoding/json"

// ProtocolVersion is bumped whenever a frame field changes meaning.
const ProtocolVersion = 1

// Frame kinds.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Frame is the single JSON envelope on the /ws stream. Clients send
// requests; the gateway answers with responses and pushes events whose Seq
// is the hook bus sequence number.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ErrorShape is shared by failed responses and HTTP error bodies.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorShape) Error() string { return e.Code + ": " + e.Message }

// Hello is pushed once, right after the upgrade.
type Hello struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
}

// ServerInfo names the build and the connection.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and pushed events of this gateway.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

func rawJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// NewRequest builds the frame a client sends to call method.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := rawJSON(params)
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, err
}

func responseFrame(id string, payload any) (Frame, error) {
	raw, err := rawJSON(payload)
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, err
}

func errorFrame(id string, e ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &e}
}

func eventFrame(event string, seq uint64, payload any) (Frame, error) {
	raw, err := rawJSON(payload)
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, err
}
