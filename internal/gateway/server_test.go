package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/hotkey"
	"github.com/soyeahso/agentclick/internal/logging"
	"github.com/soyeahso/agentclick/internal/pipeline"
)

const testToken = "test-token-123"

type fakeSession struct{ ws domain.Workspace }

func (f fakeSession) Current() domain.Workspace { return f.ws }

type fakePipeline struct {
	state pipeline.State
	last  *pipeline.Outcome
}

func (f fakePipeline) State() pipeline.State { return f.state }

func (f fakePipeline) Last() (pipeline.Outcome, bool) {
	if f.last == nil {
		return pipeline.Outcome{}, false
	}
	return *f.last, true
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []hotkey.Event
	err    error
}

func (f *fakeDispatcher) Submit(_ context.Context, ev hotkey.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeDispatcher) Events() []hotkey.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hotkey.Event(nil), f.events...)
}

type fakeCatalog struct{}

func (fakeCatalog) Lookup(id string) (*domain.Agent, error) {
	if id != "review" {
		return nil, &domain.AgentNotFoundError{ID: id}
	}
	return &domain.Agent{ID: id, Name: "Code Review", Emoji: "📝", Color: "#3498db"}, nil
}

type fixture struct {
	srv   *Server
	ts    *httptest.Server
	disp  *fakeDispatcher
	hooks *hooks.Manager
}

func testServer(t *testing.T) *fixture {
	t.Helper()
	log := logging.New(nil, "silent")
	cfg := config.GatewayConfig{Port: 0, Auth: config.GatewayAuth{Token: testToken}}

	f := &fixture{disp: &fakeDispatcher{}, hooks: hooks.NewManager(log)}
	f.srv = New(cfg, log,
		WithSession(fakeSession{ws: domain.Workspace{
			ID:     "default",
			Name:   "Default",
			Folder: "/src/app",
			Emoji:  "🔧",
			Color:  "#0078d4",
			Agents: []domain.AgentRef{{Kind: domain.KindCommand, ID: "review", Enabled: true}},
		}}),
		WithPipeline(fakePipeline{
			state: pipeline.StateIdle,
			last:  &pipeline.Outcome{RunID: "run-1", State: pipeline.StateFailed, Err: errors.New("boom")},
		}),
		WithDispatcher(f.disp),
		WithCatalog(fakeCatalog{}),
		WithHooks(f.hooks),
	)
	f.ts = httptest.NewServer(f.srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func authed(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoint_Unauthenticated(t *testing.T) {
	f := testServer(t)
	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Version)
}

func TestNotFound(t *testing.T) {
	f := testServer(t)
	resp, err := http.Get(f.ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestState_RequiresToken(t *testing.T) {
	f := testServer(t)
	resp, err := http.Get(f.ts.URL + "/v1/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestState(t *testing.T) {
	f := testServer(t)
	resp := authed(t, "GET", f.ts.URL+"/v1/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.NotNil(t, st.Workspace)
	assert.Equal(t, "default", st.Workspace.ID)
	assert.Equal(t, 1, st.Workspace.Agents)
	require.NotNil(t, st.Agent)
	assert.Equal(t, "Code Review", st.Agent.Name)
	assert.Equal(t, "command", st.Agent.Kind)
	assert.Equal(t, "idle", st.Pipeline)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "failed", st.LastRun.State)
	assert.Equal(t, "boom", st.LastRun.Error)
}

func TestHotkey_Accepted(t *testing.T) {
	f := testServer(t)
	resp := authed(t, "POST", f.ts.URL+"/v1/hotkeys/execute", `{"agentId":"review","text":"hi"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack HotkeyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Accepted)
	assert.Equal(t, "execute", ack.Action)

	events := f.disp.Events()
	require.Len(t, events, 1)
	assert.Equal(t, hotkey.ActionExecute, events[0].Action)
	assert.Equal(t, "gateway", events[0].Source)
	assert.Equal(t, "review", events[0].Request.AgentID)
	require.NotNil(t, events[0].Request.Text)
	assert.Equal(t, "hi", *events[0].Request.Text)
}

func TestHotkey_NoBody(t *testing.T) {
	f := testServer(t)
	resp := authed(t, "POST", f.ts.URL+"/v1/hotkeys/next_agent", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, hotkey.ActionNextAgent, f.disp.Events()[0].Action)
}

func TestHotkey_Errors(t *testing.T) {
	f := testServer(t)

	resp := authed(t, "POST", f.ts.URL+"/v1/hotkeys/explode", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = authed(t, "POST", f.ts.URL+"/v1/hotkeys/execute", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = authed(t, "GET", f.ts.URL+"/v1/hotkeys/execute", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.disp.err = hotkey.ErrStopped
	resp = authed(t, "POST", f.ts.URL+"/v1/hotkeys/execute", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHotkey_RateLimitedAfterFailures(t *testing.T) {
	f := testServer(t)
	for i := 0; i < authRateMaxFails; i++ {
		resp, err := http.Post(f.ts.URL+"/v1/hotkeys/execute", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := authed(t, "POST", f.ts.URL+"/v1/hotkeys/execute", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func dialWS(t *testing.T, f *fixture, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var fr Frame
	require.NoError(t, conn.ReadJSON(&fr))
	return fr
}

func TestWebSocket_HelloAndBroadcast(t *testing.T) {
	f := testServer(t)
	conn, resp, err := dialWS(t, f, testToken)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	hello := readFrame(t, conn)
	assert.Equal(t, FrameTypeEvent, hello.Type)
	assert.Equal(t, "hello", hello.Event)
	var h Hello
	require.NoError(t, json.Unmarshal(hello.Payload, &h))
	assert.Equal(t, ProtocolVersion, h.Protocol)
	assert.NotEmpty(t, h.Server.ConnID)
	assert.Equal(t, []string{"health", "hotkey", "state"}, h.Features.Methods)

	f.hooks.Emit(context.Background(), hooks.EventNotification, map[string]any{"message": "Agent: Code Review"})

	ev := readFrame(t, conn)
	assert.Equal(t, hooks.EventNotification, ev.Event)
	assert.Positive(t, ev.Seq)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "Agent: Code Review", payload["message"])
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	f := testServer(t)
	_, resp, err := dialWS(t, f, "wrong")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_RPC(t *testing.T) {
	f := testServer(t)
	conn, _, err := dialWS(t, f, testToken)
	require.NoError(t, err)
	defer conn.Close()
	readFrame(t, conn) // hello

	req, err := NewRequest("r1", "state", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	res := readFrame(t, conn)
	assert.Equal(t, "r1", res.ID)
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)
	var st StateResponse
	require.NoError(t, json.Unmarshal(res.Payload, &st))
	assert.Equal(t, 1, st.Clients)

	req, _ = NewRequest("r2", "hotkey", map[string]string{"action": "next-workspace"})
	require.NoError(t, conn.WriteJSON(req))
	res = readFrame(t, conn)
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)
	events := f.disp.Events()
	require.Len(t, events, 1)
	assert.Equal(t, hotkey.ActionNextWorkspace, events[0].Action)
	assert.True(t, strings.HasPrefix(events[0].Source, "ws:"))

	req, _ = NewRequest("r3", "nope", nil)
	require.NoError(t, conn.WriteJSON(req))
	res = readFrame(t, conn)
	require.NotNil(t, res.Error)
	assert.Equal(t, "method_not_found", res.Error.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	log := logging.New(nil, "silent")
	srv := New(config.GatewayConfig{}, log)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18790", ResolveBindAddr(config.GatewayConfig{Port: 18790}))
	assert.Equal(t, "0.0.0.0:1", ResolveBindAddr(config.GatewayConfig{Bind: "lan", Port: 1}))
	assert.Equal(t, "[::1]:2", ResolveBindAddr(config.GatewayConfig{Bind: "custom", Host: "::1", Port: 2}))
}

func TestRemote(t *testing.T) {
	f := testServer(t)
	r := NewRemote(f.ts.URL+"/", testToken)

	h, err := r.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)

	st, err := r.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", st.Workspace.ID)

	ack, err := r.Trigger(context.Background(), "execute", &HotkeyRequest{AgentID: "review"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	bad := NewRemote(f.ts.URL, "wrong")
	_, err = bad.State(context.Background())
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Equal(t, "unauthorized", re.Code)
}
