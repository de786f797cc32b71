// Package gateway exposes the aisopod runtime over a JSON-RPC 2.0 WebSocket
// connection: connection lifecycle, version negotiation, heartbeat, and the
// /health endpoint operators and the CLI poll.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/aisopod/internal/agent"
	"github.com/haasonsaas/aisopod/internal/config"
	"github.com/haasonsaas/aisopod/internal/multiagent"
	"github.com/haasonsaas/aisopod/internal/pairing"
	"github.com/haasonsaas/aisopod/internal/ratelimit"
	"github.com/haasonsaas/aisopod/internal/rpc"
	"github.com/haasonsaas/aisopod/internal/sessions"
)

// ServerVersion is reported in the WebSocket welcome frame and /health body.
const ServerVersion = "0.1.0"

// ProtocolVersion is the gateway's JSON-RPC/WebSocket wire protocol version.
// A connecting client must share its major component or the handshake fails.
const ProtocolVersion = "1.0"

// Server hosts the gateway's HTTP/WebSocket listener. Deps are wired once
// at construction and shared across every connection.
type Server struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger
	startTime  time.Time

	sessions sessions.Store
	runtime  *agent.Runtime
	aborts   *agent.AbortRegistry

	dispatcher    *rpc.Dispatcher
	authenticator rpc.Authenticator

	// connLimiter bounds inbound JSON-RPC requests per connection, keyed by
	// rpc.ConnState.ConnID. Nil when s.config.Server.RateLimit is disabled.
	connLimiter *ratelimit.Limiter

	httpServer   *http.Server
	httpListener net.Listener
}

// Deps bundles every backend Server needs, handed in from the CLI's
// bootstrap so the gateway package itself never constructs them.
type Deps struct {
	Config        *config.Config
	ConfigPath    string
	Logger        *slog.Logger
	Sessions      sessions.Store
	Branches      sessions.BranchStore
	Runtime       *agent.Runtime
	Aborts        *agent.AbortRegistry
	Approvals     *agent.ApprovalChecker
	Agents           *multiagent.AgentRegistry
	Subagents        *multiagent.SubagentRegistry
	Scheduler        *multiagent.Scheduler
	Orchestrator     *multiagent.Orchestrator
	CapabilityRouter *multiagent.CapabilityRouter
	Providers        *agent.ProviderRegistry
	Pairing          *pairing.Store
	Events           *agent.EventBus
	Authenticator    rpc.Authenticator
}

// NewServer builds a Server and wires the full RPC method namespace against
// deps. Call Start to begin listening.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:        deps.Config,
		configPath:    deps.ConfigPath,
		logger:        logger,
		startTime:     time.Now(),
		sessions:      deps.Sessions,
		runtime:       deps.Runtime,
		aborts:        deps.Aborts,
		authenticator: deps.Authenticator,
	}
	if deps.Config != nil && deps.Config.Server.RateLimit.Enabled {
		s.connLimiter = ratelimit.NewLimiter(deps.Config.Server.RateLimit)
	}

	dispatcher := rpc.NewDispatcher(logger)
	rpc.RegisterAll(dispatcher, &rpc.Services{
		Sessions:   deps.Sessions,
		Branches:   deps.Branches,
		Runtime:    deps.Runtime,
		Aborts:     deps.Aborts,
		Approvals:  deps.Approvals,
		Agents:           deps.Agents,
		Subagents:        deps.Subagents,
		Scheduler:        deps.Scheduler,
		Orchestrator:     deps.Orchestrator,
		CapabilityRouter: deps.CapabilityRouter,
		Providers:        deps.Providers,
		Pairing:          deps.Pairing,
		Events:           deps.Events,
		Config:           s,
		GatewayMgr:       s,
		Logger:           logger,
	})
	s.dispatcher = dispatcher

	return s
}

// Start binds the HTTP/WebSocket listener and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.config == nil {
		return errors.New("gateway: config is required")
	}
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.HTTPPort)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.newWSHandler())

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", addr, err)
	}
	s.httpListener = listener

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server

	errCh := make(chan error, 1)
	go func() {
		tlsCert := s.config.Server.TLS.CertFile
		tlsKey := s.config.Server.TLS.KeyFile
		var serveErr error
		if tlsCert != "" && tlsKey != "" {
			serveErr = server.ServeTLS(listener, tlsCert, tlsKey)
		} else {
			serveErr = server.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
			return
		}
		errCh <- nil
	}()

	s.logger.Info("gateway listening", "addr", addr)

	stopWatch := s.watchConfigFile(ctx)
	defer stopWatch()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		return err
	}
}

// watchConfigFile watches the on-disk config for out-of-band edits and
// logs a warning; the gateway does not hot-swap its wiring, so operators
// still need ApplyConfig or a restart to pick up the change.
func (s *Server) watchConfigFile(ctx context.Context) func() {
	if s.configPath == "" {
		return func() {}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("config watch disabled", "error", err)
		return func() {}
	}
	if err := watcher.Add(s.configPath); err != nil {
		s.logger.Warn("config watch disabled", "path", s.configPath, "error", err)
		watcher.Close()
		return func() {}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.logger.Warn("config file changed on disk; call config.apply or restart to pick it up", "path", s.configPath)
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watch error", "error", watchErr)
			}
		}
	}()

	return func() { watcher.Close() }
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
