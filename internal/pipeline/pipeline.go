// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package pipeline runs the two ordered middleware chains (server-inbound,
// client-outbound) that mediate every event crossing the connection, plus
// the sealed event types and wire codec those chains operate on.
package pipeline

import (
	"context"
	"errors"

	"github.com/rapidaai/realtime-client/internal/rterr"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

// ErrClosed is returned by Transport.Recv on an orderly close. The receive
// loop treats it as end-of-session, not an error.
var ErrClosed = errors.New("pipeline: transport closed")

// Transport is the message-oriented collaborator the pipeline drives. It is
// intentionally minimal: one JSON document per Send/Recv.
type Transport interface {
	Send(ctx context.Context, raw []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Metadata is the per-event scratch space threaded through a chain. Roster
// is the ordered list of middleware names that have processed this event;
// Values carries arbitrary cross-middleware signals (e.g. the interruption
// coordinator's "during user speech" flag).
type Metadata struct {
	Roster []string
	Values map[string]interface{}
}

func NewMetadata() *Metadata {
	return &Metadata{Values: make(map[string]interface{})}
}

func (m *Metadata) IsInRoster(name string) bool {
	for _, n := range m.Roster {
		if n == name {
			return true
		}
	}
	return false
}

// Touch appends name to the roster. Unless allowRepeat is set, it is a
// protocol violation for a middleware to touch the same event twice.
func (m *Metadata) Touch(name string, allowRepeat bool) error {
	if !allowRepeat && m.IsInRoster(name) {
		return rterr.NewProtocolViolation("middleware "+name+" touched event more than once", nil)
	}
	m.Roster = append(m.Roster, name)
	return nil
}

// ServerMiddleware processes one inbound server event. Returning a nil
// event with a nil error drops the event; remaining middlewares do not see
// it. A non-nil error aborts the chain.
type ServerMiddleware func(ctx context.Context, event ServerEvent, meta *Metadata) (ServerEvent, error)

// ClientMiddleware processes one outbound client event, with the same
// drop/abort semantics as ServerMiddleware.
type ClientMiddleware func(ctx context.Context, event ClientEvent, meta *Metadata) (ClientEvent, error)

// Pipeline wires the two chains to a transport. Every middleware
// invocation, inbound or outbound, runs as a job on the single scheduler
// goroutine: Send is only ever called from code already running as such a
// job (the mic streamer, the interruption coordinator), and Run posts each
// inbound event's dispatch as its own job rather than running the chain on
// the Recv loop's goroutine directly. This is what lets conversation.Group
// and conversation.Tracker get away with no locking of their own.
type Pipeline struct {
	logger    commons.Logger
	transport Transport
	scheduler *scheduler.Scheduler
	server    []ServerMiddleware
	client    []ClientMiddleware
}

func New(logger commons.Logger, transport Transport, sched *scheduler.Scheduler, server []ServerMiddleware, client []ClientMiddleware) *Pipeline {
	return &Pipeline{logger: logger, transport: transport, scheduler: sched, server: server, client: client}
}

// Send drives event through the client chain and, unless dropped, encodes
// and writes it to the transport. Send does not itself hop to the
// scheduler goroutine; every existing caller (the mic streamer's flush,
// the interruption coordinator's deferred interrupt job) already runs as
// a scheduler job, so the chain still only ever executes there.
func (p *Pipeline) Send(ctx context.Context, event ClientEvent) error {
	meta := NewMetadata()
	cur := event
	for _, mw := range p.client {
		var err error
		cur, err = mw(ctx, cur, meta)
		if err != nil {
			return err
		}
		if cur == nil {
			return nil
		}
	}
	raw, err := EncodeClientEvent(cur)
	if err != nil {
		return err
	}
	return p.transport.Send(ctx, raw)
}

// Run drives the inbound receive loop until the transport closes orderly
// or ctx is cancelled. Decode failures are logged and do not terminate the
// loop; protocol violations raised by a middleware do. Recv blocks on this
// goroutine (there's no other way to wait on network I/O), but the decoded
// event's dispatch through the server chain is posted to the scheduler and
// waited on here. The chain itself, and every byte of state it touches,
// still only ever runs on the scheduler goroutine, same as every other
// piece of state this runtime mutates concurrently from device callbacks.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		raw, err := p.transport.Recv(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		event, decodeErr := DecodeServerEvent(raw)
		if decodeErr != nil {
			p.logger.Warnf("discarding malformed server frame: %v", decodeErr)
			continue
		}

		done := make(chan error, 1)
		p.scheduler.Post(func() { done <- p.dispatchServer(ctx, event) })
		select {
		case violation := <-done:
			if violation != nil {
				return violation
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatchServer runs the server chain for one event. It must only ever be
// invoked as a scheduler job.
func (p *Pipeline) dispatchServer(ctx context.Context, event ServerEvent) error {
	meta := NewMetadata()
	cur := event
	for _, mw := range p.server {
		var violation error
		cur, violation = mw(ctx, cur, meta)
		if violation != nil {
			return violation
		}
		if cur == nil {
			break
		}
	}
	return nil
}
