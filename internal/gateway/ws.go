package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/aisopod/internal/agent"
	"github.com/haasonsaas/aisopod/internal/rpc"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsWriteWait       = 10 * time.Second
	wsPingInterval    = 30 * time.Second
	wsMaxMissedPongs  = 2

	// wsSendQueueSize bounds each connection's outbound queue. Matches
	// agent.DefaultSubscriberQueueSize so a slow client drops frames on
	// the same schedule server-side subscribers do.
	wsSendQueueSize = agent.DefaultSubscriberQueueSize

	// wsClosePingTimeout is the private-range WebSocket close code sent
	// when a connection misses too many consecutive pongs.
	wsClosePingTimeout = 4408
)

// laggedPayload is sent to a connection in place of dropped frames once its
// outbound queue has overflowed, so clients can detect gaps rather than
// silently missing events.
type laggedPayload struct {
	Dropped uint64 `json:"dropped"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type welcomePayload struct {
	ServerVersion   string `json:"server_version"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

func (s *Server) newWSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requested := r.URL.Query().Get("protocol_version"); requested != "" {
			if !compatibleMajorVersion(requested, ProtocolVersion) {
				http.Error(w, "unsupported protocol version", http.StatusUpgradeRequired)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		connState := &rpc.ConnState{
			ConnID:     uuid.NewString(),
			RemoteAddr: r.RemoteAddr,
			Role:       "anonymous",
			Scopes:     nil,
		}
		if s.authenticator != nil {
			token := tokenFromRequest(r)
			resolved, authErr := s.authenticator.Authenticate(token)
			if authErr != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
					time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			}
			connState.Role = resolved.Role
			connState.Scopes = resolved.Scopes
		}

		session := newWSSession(s, conn, connState)
		session.run()
	})
}

// compatibleMajorVersion reports whether requested and supported share the
// same major component ("1.3" is compatible with "1.0"; "2.0" is not).
func compatibleMajorVersion(requested, supported string) bool {
	return majorOf(requested) == majorOf(supported)
}

func majorOf(version string) string {
	if idx := strings.Index(version, "."); idx >= 0 {
		return version[:idx]
	}
	return version
}

type wsSession struct {
	server *Server
	conn   *websocket.Conn
	state  *rpc.ConnState

	ctx    context.Context
	cancel context.CancelFunc

	queue *agent.BoundedQueue[[]byte]

	missedPongs atomic.Int32
}

func newWSSession(s *Server, conn *websocket.Conn, state *rpc.ConnState) *wsSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSession{
		server: s,
		conn:   conn,
		state:  state,
		ctx:    ctx,
		cancel: cancel,
		queue:  agent.NewBoundedQueue(wsSendQueueSize, laggedFrame),
	}
}

// laggedFrame marshals the marker queued in place of dropped outbound
// frames once a connection's queue has overflowed. Marshal failure yields
// nil, which writeLoop skips.
func laggedFrame(dropped uint64) []byte {
	data, err := json.Marshal(rpc.Event{Method: "lagged", Params: laggedPayload{Dropped: dropped}})
	if err != nil {
		return nil
	}
	return data
}

func (s *wsSession) run() {
	defer s.close()
	go s.writeLoop()
	go s.pingLoop()

	s.sendWelcome()
	s.readLoop()
}

func (s *wsSession) close() {
	s.cancel()
	s.queue.Close()
	if s.server.connLimiter != nil {
		s.server.connLimiter.Forget(s.state.ConnID)
	}
	_ = s.conn.Close()
}

func (s *wsSession) sendWelcome() {
	s.enqueueEvent(rpc.Event{
		Method: "welcome",
		Params: welcomePayload{
			ServerVersion:   ServerVersion,
			ProtocolVersion: ProtocolVersion,
			SessionID:       s.state.ConnID,
		},
	})
}

func (s *wsSession) readLoop() {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPingInterval * (wsMaxMissedPongs + 1)))
	s.conn.SetPongHandler(func(string) error {
		s.missedPongs.Store(0)
		return s.conn.SetReadDeadline(time.Now().Add(wsPingInterval * (wsMaxMissedPongs + 1)))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if s.server.connLimiter != nil && !s.server.connLimiter.Allow(s.state.ConnID) {
			s.enqueueRaw(rateLimitedResponse(data))
			continue
		}

		resp := s.server.dispatcher.Dispatch(s.ctx, s.state, data, s.emit)
		payload, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		s.enqueueRaw(payload)
	}
}

// rateLimitedResponse builds a JSON-RPC error frame for a request rejected
// by the connection's rate limiter before it ever reached the dispatcher,
// preserving the request's id so the client can match it to its call.
func rateLimitedResponse(rawRequest []byte) []byte {
	var req struct {
		ID json.RawMessage `json:"id,omitempty"`
	}
	_ = json.Unmarshal(rawRequest, &req)

	data, err := json.Marshal(rpc.Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   &rpc.Error{Code: rpc.CodeRateLimited, Message: "rate limit exceeded"},
	})
	if err != nil {
		return nil
	}
	return data
}

func (s *wsSession) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.queue.Chan():
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.missedPongs.Add(1) > wsMaxMissedPongs {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(wsClosePingTimeout, "ping timeout"),
					time.Now().Add(wsWriteWait))
				s.cancel()
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit is passed to the dispatcher as the streaming event sink for methods
// registered with RegisterStreamingMethod.
func (s *wsSession) emit(event rpc.Event) {
	s.enqueueEvent(event)
}

func (s *wsSession) enqueueEvent(event rpc.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.enqueueRaw(data)
}

// enqueueRaw delivers data without ever blocking the caller, using the same
// bounded drop-oldest-plus-lagged-marker queue agent.EventBus uses for its
// subscribers: a full queue evicts its oldest frame rather than the new one,
// and the next delivery is preceded by a "lagged" event reporting the count.
func (s *wsSession) enqueueRaw(data []byte) {
	s.queue.Push(data)
}
