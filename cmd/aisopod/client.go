package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/aisopod/internal/rpc"
)

// rpcClient is a minimal synchronous JSON-RPC 2.0 client over the gateway's
// WebSocket endpoint: connect, send one request, wait for its matching
// response, ignoring or printing any events received along the way.
type rpcClient struct {
	conn   *websocket.Conn
	nextID int64
}

func dialGateway(ctx context.Context, addr, token string) (*rpcClient, error) {
	u, err := gatewayWSURL(addr)
	if err != nil {
		return nil, configError(err)
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, unauthorizedErr(err)
		}
		return nil, networkError(fmt.Errorf("dial %s: %w", u, err))
	}

	client := &rpcClient{conn: conn}
	// Drain the welcome frame before the caller issues its first call.
	if _, _, err := client.readFrame(); err != nil {
		return nil, networkError(err)
	}
	return client, nil
}

func gatewayWSURL(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("gateway address is required")
	}
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr, nil
	}
	host := addr
	if !strings.Contains(host, "://") {
		parsed := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
		return parsed.String(), nil
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	return parsed.String(), nil
}

func (c *rpcClient) Close() error {
	return c.conn.Close()
}

// Call sends a request and blocks until a response with the matching id
// arrives, printing any intermediate streaming events to stdout.
func (c *rpcClient) Call(method string, params any, onEvent func(rpc.Event)) (any, error) {
	c.nextID++
	id := c.nextID
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := rpc.Request{JSONRPC: "2.0", ID: json.RawMessage(strconv.FormatInt(id, 10)), Method: method, Params: payload}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, networkError(err)
	}

	for {
		kind, raw, err := c.readFrame()
		if err != nil {
			return nil, networkError(err)
		}
		switch kind {
		case frameEvent:
			if onEvent != nil {
				var event rpc.Event
				if jsonErr := json.Unmarshal(raw, &event); jsonErr == nil {
					onEvent(event)
				}
			}
		case frameResponse:
			var resp rpc.Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, err
			}
			if resp.Error != nil {
				if resp.Error.Code == rpc.CodeUnauthorized {
					return nil, unauthorizedErr(resp.Error)
				}
				return nil, resp.Error
			}
			return resp.Result, nil
		}
	}
}

type frameKind int

const (
	frameEvent frameKind = iota
	frameResponse
)

// readFrame classifies an inbound frame: it's an event if it carries a
// "method" field and no "id", a response otherwise.
func (c *rpcClient) readFrame() (frameKind, json.RawMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	var probe struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, nil, err
	}
	if probe.Method != "" && len(probe.ID) == 0 {
		return frameEvent, data, nil
	}
	return frameResponse, data, nil
}
