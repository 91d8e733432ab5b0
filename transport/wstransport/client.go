package wstransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/shhac/nrpc/rpc"
)

// ClientHandler implements rpc.ClientHandler over WebSocket.
type ClientHandler struct {
	baseURL string
	dialer  *websocket.Dialer
	header  http.Header
	logger  *slog.Logger
}

// NewClientHandler creates a handler that dials baseURL + "/package.Service/method"
// for every call. baseURL uses the ws or wss scheme.
func NewClientHandler(baseURL string, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

// WithHeader sets headers sent with every handshake.
func (h *ClientHandler) WithHeader(header http.Header) *ClientHandler {
	h.header = header
	return h
}

// Call dials a connection for the method and starts sending input in the
// background.
func (h *ClientHandler) Call(ctx context.Context, pkg, service, method string, input rpc.FrameStream) (rpc.FrameStream, error) {
	ep := rpc.Endpoint{Package: pkg, Service: service, Method: method}
	url := h.baseURL + ep.FullMethod()

	conn, resp, err := h.dialer.DialContext(ctx, url, h.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		h.logger.Error("websocket dial failed", slog.String("url", url), slog.Any("error", err))
		return nil, err
	}

	c := &clientConn{conn: conn}
	c.stop = context.AfterFunc(ctx, func() { c.fail(context.Cause(ctx)) })
	go c.send(input, h.logger, ep)
	return c, nil
}

// clientConn is the output side of one call.
type clientConn struct {
	conn *websocket.Conn
	stop func() bool

	mu    sync.Mutex
	cause error
	err   error
}

// fail tears the call down, remembering why.
func (c *clientConn) fail(cause error) {
	c.mu.Lock()
	if c.cause == nil {
		c.cause = cause
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *clientConn) send(input rpc.FrameStream, logger *slog.Logger, ep rpc.Endpoint) {
	for {
		frame, err := input.Recv()
		if errors.Is(err, io.EOF) {
			if err := writeControl(c.conn, control{Type: controlEOS}); err != nil {
				logger.Debug("send eos failed", slog.String("method", ep.FullMethod()), slog.Any("error", err))
			}
			return
		}
		if err != nil {
			c.fail(err)
			return
		}
		if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			logger.Debug("send failed", slog.String("method", ep.FullMethod()), slog.Any("error", err))
			return
		}
	}
}

func (c *clientConn) Recv() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	frame, eos, err := readFrame(c.conn)
	switch {
	case err == nil && !eos:
		return frame, nil
	case eos:
		c.err = io.EOF
	default:
		c.mu.Lock()
		cause := c.cause
		c.mu.Unlock()
		if cause != nil {
			c.err = cause
		} else {
			c.err = err
		}
	}
	c.mu.Lock()
	if c.cause == nil {
		c.cause = c.err
	}
	c.mu.Unlock()
	c.stop()
	_ = c.conn.Close()
	return nil, c.err
}
