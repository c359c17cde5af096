// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package transport implements pipeline.Transport over a WebSocket
// connection to the realtime assistant endpoint.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

// Options configures the WebSocket dial.
type Options struct {
	URL              string
	Headers          map[string]string
	Query            map[string]string
	HandshakeTimeout time.Duration
	ReadLimitBytes   int64
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 30 * time.Second
	}
	if o.ReadLimitBytes == 0 {
		o.ReadLimitBytes = 10 * 1024 * 1024
	}
	return o
}

// WebSocket is a pipeline.Transport backed by a single gorilla/websocket
// connection. Reads and writes are safe to call from different goroutines;
// writes are additionally serialized against each other.
type WebSocket struct {
	logger     commons.Logger
	conn       *websocket.Conn
	writeMu    sync.Mutex
}

// Dial establishes the connection, applying query parameters and headers
// from opts, and wires a debug-logged pong handler.
func Dial(ctx context.Context, logger commons.Logger, opts Options) (*WebSocket, error) {
	opts = opts.withDefaults()

	wsURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing websocket url: %w", err)
	}
	if len(opts.Query) > 0 {
		query := wsURL.Query()
		for k, v := range opts.Query {
			query.Set(k, v)
		}
		wsURL.RawQuery = query.Encode()
	}

	headers := http.Header{}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("connecting to websocket: %w", err)
	}

	conn.SetReadLimit(opts.ReadLimitBytes)
	conn.SetPongHandler(func(string) error {
		logger.Debugf("received pong from realtime endpoint")
		return nil
	})

	return &WebSocket{logger: logger, conn: conn}, nil
}

// Send writes one text frame. Concurrent Sends are serialized. A write that
// fails because the connection was closed normally is reported as success.
func (w *WebSocket) Send(ctx context.Context, raw []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) ||
			websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return fmt.Errorf("writing websocket message: %w", err)
	}
	return nil
}

// Recv blocks for the next text frame. An orderly close surfaces as
// pipeline.ErrClosed so the receive loop can stop without logging an error.
func (w *WebSocket) Recv(ctx context.Context) ([]byte, error) {
	_, message, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, pipeline.ErrClosed
		}
		return nil, fmt.Errorf("reading websocket message: %w", err)
	}
	return message, nil
}

// Close sends a close frame and tears down the connection.
func (w *WebSocket) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

var _ pipeline.Transport = (*WebSocket)(nil)
