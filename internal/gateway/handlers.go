package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthResponse is returned by /health and the "health" RPC.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// /health stays unauthenticated so probes need no token.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error ErrorShape `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: ErrorShape{Code: code, Message: message}})
}

// RequestHandler serves one RPC method on the /ws stream.
type RequestHandler func(rc *RequestContext)

// RequestContext is the request frame plus the client to answer.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond answers the request with payload.
func (rc *RequestContext) Respond(payload any) {
	f, err := responseFrame(rc.Frame.ID, payload)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.send(f)
}

// RespondError answers the request with an error.
func (rc *RequestContext) RespondError(code, message string) {
	rc.send(errorFrame(rc.Frame.ID, ErrorShape{Code: code, Message: message}))
}

func (rc *RequestContext) send(f Frame) {
	if err := rc.Client.enqueue(f); err != nil {
		rc.Client.log.Debug().Err(err).Str("method", rc.Frame.Method).Msg("rpc response dropped")
	}
}

// Params decodes the request params into target. Missing params leave
// target untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
