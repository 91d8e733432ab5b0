package wstransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shhac/nrpc/rpc"
)

// Handler serves nrpc calls over WebSocket. Mount it under a prefix with
// http.StripPrefix or set Prefix.
type Handler struct {
	h        rpc.ClientHandler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// Prefix is removed from the request path before it is parsed.
	Prefix string
}

// NewHandler creates a handler that routes calls to h, typically an *rpc.Router.
func NewHandler(h rpc.ClientHandler, logger *slog.Logger) *Handler {
	return &Handler{
		h:      h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
		},
	}
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ep, ok := rpc.ParseFullMethod(strings.TrimPrefix(r.URL.Path, s.Prefix))
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		return
	}
	defer conn.Close()

	out, err := s.h.Call(r.Context(), ep.Package, ep.Service, ep.Method, &serverFrames{conn: conn})
	if err != nil {
		s.finish(conn, ep, err)
		return
	}

	for {
		frame, err := out.Recv()
		if errors.Is(err, io.EOF) {
			s.finish(conn, ep, nil)
			return
		}
		if err != nil {
			s.finish(conn, ep, err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.logger.Debug("write failed", slog.String("method", ep.FullMethod()), slog.Any("error", err))
			return
		}
	}
}

// finish sends the terminal envelope and closes the connection cleanly.
func (s *Handler) finish(conn *websocket.Conn, ep rpc.Endpoint, callErr error) {
	c := control{Type: controlEOS}
	if callErr != nil {
		s.logger.Debug("call failed", slog.String("method", ep.FullMethod()), slog.Any("error", callErr))
		c = errorControl(callErr)
	}
	if err := writeControl(conn, c); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// serverFrames reads client frames from the connection.
type serverFrames struct {
	conn *websocket.Conn
	err  error
}

func (s *serverFrames) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	frame, eos, err := readFrame(s.conn)
	switch {
	case eos:
		s.err = io.EOF
	case err != nil:
		s.err = err
	default:
		return frame, nil
	}
	return nil, s.err
}
