// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

// newTestScheduler starts a scheduler draining on its own goroutine for
// the duration of the test, matching how Pipeline.Run expects to hand off
// every event's dispatch.
func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sched := scheduler.New()
	go sched.Run(ctx)
	return sched
}

type fakeTransport struct {
	sent  [][]byte
	inbox [][]byte
	err   error
}

func (f *fakeTransport) Send(ctx context.Context, raw []byte) error {
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context) ([]byte, error) {
	if len(f.inbox) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, ErrClosed
	}
	next := f.inbox[0]
	f.inbox = f.inbox[1:]
	return next, nil
}

func TestMetadataTouchRejectsRepeatUnlessAllowed(t *testing.T) {
	meta := NewMetadata()
	require.NoError(t, meta.Touch("a", false))
	assert.Error(t, meta.Touch("a", false))
	assert.NoError(t, meta.Touch("a", true))
	assert.True(t, meta.IsInRoster("a"))
	assert.False(t, meta.IsInRoster("b"))
}

func TestPipelineSendDropsEventOnNilReturn(t *testing.T) {
	transport := &fakeTransport{}
	dropper := func(ctx context.Context, e ClientEvent, m *Metadata) (ClientEvent, error) { return nil, nil }
	p := New(commons.NewTestLogger(), transport, nil, nil, []ClientMiddleware{dropper})

	err := p.Send(context.Background(), NewResponseCreateEvent())
	require.NoError(t, err)
	assert.Empty(t, transport.sent)
}

func TestPipelineSendAbortsChainOnError(t *testing.T) {
	transport := &fakeTransport{}
	boom := errors.New("boom")
	failing := func(ctx context.Context, e ClientEvent, m *Metadata) (ClientEvent, error) { return nil, boom }
	p := New(commons.NewTestLogger(), transport, nil, nil, []ClientMiddleware{failing})

	err := p.Send(context.Background(), NewResponseCreateEvent())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, transport.sent)
}

func TestPipelineSendEncodesAndTransmits(t *testing.T) {
	transport := &fakeTransport{}
	p := New(commons.NewTestLogger(), transport, nil, nil, nil)

	require.NoError(t, p.Send(context.Background(), NewResponseCreateEvent()))
	require.Len(t, transport.sent, 1)
	assert.Contains(t, string(transport.sent[0]), `"type":"response.create"`)
}

func TestPipelineRunDiscardsMalformedFrameAndContinues(t *testing.T) {
	var seen []ServerEvent
	collect := func(ctx context.Context, e ServerEvent, m *Metadata) (ServerEvent, error) {
		seen = append(seen, e)
		return e, nil
	}
	transport := &fakeTransport{inbox: [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"session.created","session":{}}`),
	}}
	p := New(commons.NewTestLogger(), transport, newTestScheduler(t), []ServerMiddleware{collect}, nil)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, seen, 1)
	_, ok := seen[0].(SessionCreatedEvent)
	assert.True(t, ok)
}

func TestPipelineRunAbortsOnMiddlewareError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(ctx context.Context, e ServerEvent, m *Metadata) (ServerEvent, error) { return nil, boom }
	transport := &fakeTransport{inbox: [][]byte{
		[]byte(`{"type":"session.created","session":{}}`),
	}}
	p := New(commons.NewTestLogger(), transport, newTestScheduler(t), []ServerMiddleware{failing}, nil)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPipelineRunStopsOrderlyOnClosedTransport(t *testing.T) {
	transport := &fakeTransport{}
	p := New(commons.NewTestLogger(), transport, newTestScheduler(t), nil, nil)
	assert.NoError(t, p.Run(context.Background()))
}

func TestCodecEncodesEmptyPreviousItemIDAsNull(t *testing.T) {
	event := NewConversationItemCreateEvent(ItemPayload{
		ID: "item-1", Role: "user",
		Content: []ItemContentPayload{{Type: "input_text", Text: "hi"}},
	}, "")
	raw, err := EncodeClientEvent(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"previous_item_id":null`)
}

func TestDecodeServerEventUnknownTypeReturnsDecodeError(t *testing.T) {
	_, err := DecodeServerEvent([]byte(`{"type":"something.unrecognized"}`))
	assert.Error(t, err)
}

func TestDecodeServerEventNormalizesEmptyPreviousItemID(t *testing.T) {
	event, err := DecodeServerEvent([]byte(`{"type":"conversation.item.added","item":{"id":"i1"},"previous_item_id":""}`))
	require.NoError(t, err)
	added, ok := event.(ConversationItemAddedEvent)
	require.True(t, ok)
	assert.Equal(t, "", added.PreviousItemID)
}
