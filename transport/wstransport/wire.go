// Package wstransport carries nrpc calls over WebSocket connections, one
// connection per call. Binary messages are frames. Text messages are JSON
// control envelopes: "eos" ends a side, "error" carries a failure.
package wstransport

import (
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/shhac/nrpc/rpc"
)

const (
	controlEOS   = "eos"
	controlError = "error"
)

// control is the JSON envelope sent in text messages.
type control struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Service string `json:"service,omitempty"`
	Method  string `json:"method,omitempty"`
	Want    int    `json:"want,omitempty"`
	Got     int    `json:"got,omitempty"`
	Index   int    `json:"index,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

func errorControl(err error) control {
	c := control{Type: controlError, Message: err.Error(), Index: -1}
	var se *rpc.ServiceError
	if errors.As(err, &se) {
		c.Kind = se.Kind.String()
		c.Service = se.Service
		c.Method = se.Method
		c.Want = se.Want
		c.Got = se.Got
		c.Index = se.Index
		if se.Err != nil {
			c.Cause = se.Err.Error()
		}
	}
	return c
}

// err rebuilds the error an error envelope describes.
func (c control) err() error {
	kind := rpc.ParseErrorKind(c.Kind)
	if kind == 0 {
		return errors.New(c.Message)
	}
	se := &rpc.ServiceError{
		Kind:    kind,
		Service: c.Service,
		Method:  c.Method,
		Want:    c.Want,
		Got:     c.Got,
		Index:   c.Index,
	}
	if c.Cause != "" {
		se.Err = errors.New(c.Cause)
	}
	return se
}

func writeControl(conn *websocket.Conn, c control) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// readFrame reads the next frame. eos is true when the peer ended its side;
// an error envelope is returned as err.
func readFrame(conn *websocket.Conn) (frame []byte, eos bool, err error) {
	mt, data, err := conn.ReadMessage()
	if err != nil {
		return nil, false, err
	}
	if mt == websocket.BinaryMessage {
		return data, false, nil
	}
	var c control
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, err
	}
	switch c.Type {
	case controlEOS:
		return nil, true, nil
	case controlError:
		return nil, false, c.err()
	default:
		return nil, false, errors.New("wstransport: unknown control message " + c.Type)
	}
}
