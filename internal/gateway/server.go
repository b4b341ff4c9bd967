// Package gateway is the local control server: HTTP endpoints to read state
// and fire hotkey actions, plus a WebSocket event stream.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/hotkey"
	"github.com/soyeahso/agentclick/internal/logging"
	"github.com/soyeahso/agentclick/internal/pipeline"
	"github.com/soyeahso/agentclick/internal/version"
)

const (
	maxPayload    = 1 << 20
	sweepInterval = time.Minute
	hookName      = "gateway"
)

// broadcastEvents are re-sent to WebSocket subscribers.
var broadcastEvents = []string{
	hooks.EventNotification,
	hooks.EventPipelineState,
	hooks.EventAfterAgentRun,
	hooks.EventAgentChanged,
	hooks.EventWorkspaceChanged,
	hooks.EventCatalogChanged,
	hooks.EventHotkey,
}

// Session exposes the current workspace. *session.State satisfies it.
type Session interface {
	Current() domain.Workspace
}

// Pipeline exposes run state. *pipeline.Pipeline satisfies it.
type Pipeline interface {
	State() pipeline.State
	Last() (pipeline.Outcome, bool)
}

// Dispatcher accepts hotkey events. *hotkey.Dispatcher satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, ev hotkey.Event) error
}

// AgentSource resolves agent names. *catalog.Catalog satisfies it.
type AgentSource interface {
	Lookup(id string) (*domain.Agent, error)
}

// Server is the gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler

	session    Session
	pipeline   Pipeline
	dispatcher Dispatcher
	catalog    AgentSource
	hooks      *hooks.Manager
	unsubscribe func()

	mu          sync.Mutex
	addr        string
	startedAt   time.Time
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithSession sets the workspace source for /v1/state.
func WithSession(s Session) ServerOption { return func(srv *Server) { srv.session = s } }

// WithPipeline sets the pipeline reported by /v1/state.
func WithPipeline(p Pipeline) ServerOption { return func(srv *Server) { srv.pipeline = p } }

// WithDispatcher sets where hotkey requests are submitted.
func WithDispatcher(d Dispatcher) ServerOption { return func(srv *Server) { srv.dispatcher = d } }

// WithCatalog sets the agent name source.
func WithCatalog(c AgentSource) ServerOption { return func(srv *Server) { srv.catalog = c } }

// WithHooks subscribes the WebSocket broadcaster to lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption { return func(srv *Server) { srv.hooks = hm } }

// New creates a gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		handlers:    make(map[string]RequestHandler),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin,
		},
	}
	s.clients = newClientRegistry(s.log)
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	if s.hooks != nil {
		s.subscribe()
	}
	return s
}

// checkWebSocketOrigin allows non-browser clients and pages served from
// the gateway itself.
func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host
}

func (s *Server) subscribe() {
	s.unsubscribe = s.hooks.Subscribe(hookName, func(_ context.Context, p hooks.Payload) error {
		s.clients.broadcast(p)
		return nil
	}, broadcastEvents...)
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// ResolveBindAddr computes the listen address from config.
func ResolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.Host
		if host == "" {
			host = "127.0.0.1"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return instrument(mux, s.log)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := ResolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.auth.Mode == AuthNone {
		s.log.Warn().Msg("no gateway token configured, requests are not authenticated")
	}
	if s.cfg.Bind == "lan" {
		s.log.Warn().Msg("gateway is reachable from the network without TLS")
	}

	s.log.Info().
		Str("addr", s.addr).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": s.addr})
	}

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepDone:
				return
			case <-ticker.C:
				s.authLimiter.sweep()
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.closeAll()
		srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	close(sweepDone)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// handleWebSocket upgrades an authenticated request, greets the client and
// serves its requests until either side closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, r.RemoteAddr, s.log)
	s.clients.add(client)
	defer func() {
		s.clients.remove(client)
		client.Close()
	}()
	go client.writePump()

	hello, err := eventFrame("hello", 0, Hello{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: version.Version, Commit: version.Commit, ConnID: client.ConnID},
		Features: Features{Methods: s.Methods(), Events: broadcastEvents},
	})
	if err == nil {
		err = client.enqueue(hello)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("sending hello failed")
		return
	}

	err = client.readFrames(maxPayload, func(f Frame) { s.dispatch(r.Context(), client, f) })
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		client.log.Debug().Msg("client closed connection")
	case errors.Is(err, net.ErrClosed):
	default:
		client.log.Debug().Err(err).Msg("websocket read ended")
	}
}

func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.enqueue(errorFrame(frame.ID, ErrorShape{Code: "method_not_found", Message: "unknown method: " + frame.Method}))
		return
	}
	handler(&RequestContext{Ctx: ctx, Client: client, Frame: frame, Server: s})
}
