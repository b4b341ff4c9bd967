package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/agentclick/internal/hotkey"
	"github.com/soyeahso/agentclick/internal/pipeline"
	"github.com/soyeahso/agentclick/internal/version"
)

const maxHotkeyBody = 64 << 10

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/state", s.requireAuth(s.handleState))
	mux.HandleFunc("POST /v1/hotkeys/{action}", s.requireAuth(s.handleHotkey))
	mux.HandleFunc("GET /ws", s.requireAuth(s.handleWebSocket))
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("state", s.rpcState)
	s.Handle("hotkey", s.rpcHotkey)
}

// WorkspaceState is the workspace part of StateResponse.
type WorkspaceState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
	Emoji  string `json:"emoji,omitempty"`
	Color  string `json:"color,omitempty"`
	Agents int    `json:"enabledAgents"`
}

// AgentState is the selected agent.
type AgentState struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
	Color string `json:"color,omitempty"`
}

// RunState summarizes the last finished run.
type RunState struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StateResponse is returned by GET /v1/state and the "state" RPC.
type StateResponse struct {
	Version   string          `json:"version"`
	Workspace *WorkspaceState `json:"workspace,omitempty"`
	Agent     *AgentState     `json:"agent,omitempty"`
	Pipeline  string          `json:"pipeline,omitempty"`
	LastRun   *RunState       `json:"lastRun,omitempty"`
	Clients   int             `json:"clients"`
}

// HotkeyRequest is the optional body of POST /v1/hotkeys/{action}.
type HotkeyRequest struct {
	AgentID     string   `json:"agentId,omitempty"`
	WorkspaceID string   `json:"workspaceId,omitempty"`
	Text        *string  `json:"text,omitempty"`
	Files       []string `json:"files,omitempty"`
	FocusFile   string   `json:"focusFile,omitempty"`
}

// HotkeyResponse acknowledges a queued hotkey.
type HotkeyResponse struct {
	Accepted bool   `json:"accepted"`
	Action   string `json:"action"`
}

func (s *Server) state() StateResponse {
	resp := StateResponse{Version: version.Version, Clients: s.clients.Count()}

	if s.session != nil {
		ws := s.session.Current()
		resp.Workspace = &WorkspaceState{
			ID:     ws.ID,
			Name:   ws.Name,
			Folder: ws.Folder,
			Emoji:  ws.Emoji,
			Color:  ws.Color,
			Agents: len(ws.EnabledAgents()),
		}
		if ref, ok := ws.CurrentAgentRef(); ok {
			agent := &AgentState{ID: ref.ID, Kind: string(ref.Kind), Name: ref.ID}
			if s.catalog != nil {
				if a, err := s.catalog.Lookup(ref.ID); err == nil {
					agent.Name, agent.Emoji, agent.Color = a.Name, a.Emoji, a.Color
				}
			}
			resp.Agent = agent
		}
	}

	if s.pipeline != nil {
		resp.Pipeline = string(s.pipeline.State())
		if last, ok := s.pipeline.Last(); ok {
			run := &RunState{ID: last.RunID, State: string(last.State)}
			if last.Result != nil {
				run.Status = string(last.Result.Status)
			}
			if last.Err != nil {
				run.Error = last.Err.Error()
			}
			resp.LastRun = run
		}
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleHotkey(w http.ResponseWriter, r *http.Request) {
	action, err := hotkey.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
		return
	}

	var body HotkeyRequest
	data, err := io.ReadAll(io.LimitReader(r.Body, maxHotkeyBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(data) > maxHotkeyBody {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_body", "request body too large")
		return
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	resp, status, shape := s.submit(r, action, body)
	if shape != nil {
		writeError(w, status, shape.Code, shape.Message)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// submit queues action. On failure it returns an HTTP status and error.
func (s *Server) submit(r *http.Request, action hotkey.Action, body HotkeyRequest) (HotkeyResponse, int, *ErrorShape) {
	if s.dispatcher == nil {
		return HotkeyResponse{}, http.StatusServiceUnavailable, &ErrorShape{Code: "unavailable", Message: "no hotkey dispatcher running"}
	}
	ev := hotkey.Event{
		Action: action,
		Source: "gateway",
		Request: pipeline.Request{
			AgentID:     body.AgentID,
			WorkspaceID: body.WorkspaceID,
			Text:        body.Text,
			Files:       body.Files,
			FocusFile:   body.FocusFile,
		},
	}
	if err := s.dispatcher.Submit(r.Context(), ev); err != nil {
		if errors.Is(err, hotkey.ErrStopped) {
			return HotkeyResponse{}, http.StatusServiceUnavailable, &ErrorShape{Code: "unavailable", Message: err.Error()}
		}
		return HotkeyResponse{}, http.StatusInternalServerError, &ErrorShape{Code: "submit_failed", Message: err.Error()}
	}
	s.log.Info().Str("action", string(action)).Str("remote", r.RemoteAddr).Msg("hotkey accepted")
	return HotkeyResponse{Accepted: true, Action: string(action)}, http.StatusAccepted, nil
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Clients: s.clients.Count(),
		Uptime:  s.uptime().Round(time.Second).String(),
	})
}

func (s *Server) rpcState(rc *RequestContext) {
	rc.Respond(s.state())
}

type hotkeyParams struct {
	Action string `json:"action"`
	HotkeyRequest
}

func (s *Server) rpcHotkey(rc *RequestContext) {
	var p hotkeyParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	action, err := hotkey.ParseAction(p.Action)
	if err != nil {
		rc.RespondError("invalid_action", err.Error())
		return
	}
	if s.dispatcher == nil {
		rc.RespondError("unavailable", "no hotkey dispatcher running")
		return
	}
	ev := hotkey.Event{
		Action: action,
		Source: "ws:" + rc.Client.ConnID,
		Request: pipeline.Request{
			AgentID:     p.AgentID,
			WorkspaceID: p.WorkspaceID,
			Text:        p.Text,
			Files:       p.Files,
			FocusFile:   p.FocusFile,
		},
	}
	if err := s.dispatcher.Submit(rc.Ctx, ev); err != nil {
		rc.RespondError("submit_failed", err.Error())
		return
	}
	rc.Respond(HotkeyResponse{Accepted: true, Action: string(action)})
}
