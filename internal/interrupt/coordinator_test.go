// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package interrupt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/audioplayer"
	"github.com/rapidaai/realtime-client/internal/conversation"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

type fakePlaybackTracker struct {
	mu           sync.Mutex
	state        audioplayer.PlaybackState
	interrupted  int
}

func (f *fakePlaybackTracker) OnPlayMs(itemID string, contentIndex int, ms float64) {}
func (f *fakePlaybackTracker) OnInterrupted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupted++
}
func (f *fakePlaybackTracker) State() audioplayer.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeSender struct {
	mu   sync.Mutex
	sent []pipeline.ClientEvent
}

func (f *fakeSender) Send(ctx context.Context, event pipeline.ClientEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, event)
	return nil
}
func (f *fakeSender) events() []pipeline.ClientEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pipeline.ClientEvent, len(f.sent))
	copy(out, f.sent)
	return out
}

func pcm16() *audio.Format {
	f := audio.FormatPCM16
	return &f
}

func TestInterruptDuringPlaybackEmitsCancelThenTruncateOnce(t *testing.T) {
	tracker := conversation.NewTracker(commons.NewTestLogger())
	_, err := tracker.ServerMiddleware(context.Background(), pipeline.ConversationItemAddedEvent{
		Item: pipeline.ItemPayload{ID: "item-1", Role: "assistant"},
	}, pipeline.NewMetadata())
	require.NoError(t, err)
	cell := tracker.Group.GetCellFromID("item-1")
	cell.AudioTotalBytes = 9600 // 200ms of PCM 24kHz 16-bit
	_, err = tracker.ServerMiddleware(context.Background(), pipeline.ResponseContentPartAddedEvent{
		ItemID: "item-1", ResponseID: "r1", ContentIndex: 0,
		Part: pipeline.ItemContentPayload{Type: "audio", Transcript: "hello world"},
	}, pipeline.NewMetadata())
	require.NoError(t, err)

	playback := &fakePlaybackTracker{state: audioplayer.PlaybackState{
		Playing: true, CurrentItemID: "item-1", CurrentContentIndex: 0, ElapsedMs: 50,
	}}
	interruptedPlayer := 0
	sched := scheduler.New()
	coord := New(commons.NewTestLogger(), tracker.Group, tracker, playback, func() { interruptedPlayer++ }, func() *audio.Format { return pcm16() }, sched)
	sender := &fakeSender{}
	coord.RegisterSend(sender)

	meta := pipeline.NewMetadata()
	_, err = coord.ServerMiddleware(context.Background(), pipeline.InputAudioBufferSpeechStartedEvent{}, meta)
	require.NoError(t, err)

	require.True(t, sched.RunOne(), "interrupt() should have been posted as a scheduler job")

	events := sender.events()
	_, isCancel := events[0].(pipeline.ResponseCancelEvent)
	assert.True(t, isCancel)
	truncate, isTruncate := events[1].(pipeline.ConversationItemTruncateEvent)
	require.True(t, isTruncate)
	assert.Equal(t, "item-1", truncate.ItemID)
	assert.Equal(t, 50, truncate.AudioEndMs)

	assert.Equal(t, 1, interruptedPlayer)
	assert.Equal(t, 1, playback.interrupted)
	assert.NotNil(t, cell.AudioTruncate)
}

func TestInterruptIsIdempotentPerItem(t *testing.T) {
	tracker := conversation.NewTracker(commons.NewTestLogger())
	require.NoError(t, tracker.Group.InsertAfter(&conversation.Cell{ItemID: "item-2"}, conversation.Root))

	playback := &fakePlaybackTracker{state: audioplayer.PlaybackState{Playing: true, CurrentItemID: "item-2"}}
	sched := scheduler.New()
	coord := New(commons.NewTestLogger(), tracker.Group, tracker, playback, func() {}, func() *audio.Format { return pcm16() }, sched)
	sender := &fakeSender{}
	coord.RegisterSend(sender)

	meta1 := pipeline.NewMetadata()
	_, err := coord.ServerMiddleware(context.Background(), pipeline.InputAudioBufferSpeechStartedEvent{}, meta1)
	require.NoError(t, err)
	meta2 := pipeline.NewMetadata()
	_, err = coord.ServerMiddleware(context.Background(), pipeline.InputAudioBufferSpeechStartedEvent{}, meta2)
	require.NoError(t, err)

	require.True(t, sched.RunOne(), "the first speech-started should have posted exactly one interrupt job")
	assert.False(t, sched.RunOne(), "second speech-started for the same item must not post a second interrupt job")
	assert.Len(t, sender.events(), 2, "second speech-started for the same item must not re-interrupt")
}

func TestServerMiddlewareRejectsRunningAfterAudioPlayer(t *testing.T) {
	tracker := conversation.NewTracker(commons.NewTestLogger())
	playback := &fakePlaybackTracker{}
	coord := New(commons.NewTestLogger(), tracker.Group, tracker, playback, func() {}, func() *audio.Format { return pcm16() }, scheduler.New())

	meta := pipeline.NewMetadata()
	require.NoError(t, meta.Touch(audioplayer.MiddlewareName, false))

	_, err := coord.ServerMiddleware(context.Background(), pipeline.InputAudioBufferSpeechStartedEvent{}, meta)
	assert.Error(t, err)
}

func TestResponseAudioDeltaDuringUserSpeechSetsSuppressionFlag(t *testing.T) {
	tracker := conversation.NewTracker(commons.NewTestLogger())
	require.NoError(t, tracker.Group.InsertAfter(&conversation.Cell{ItemID: "item-3"}, conversation.Root))
	playback := &fakePlaybackTracker{}
	sched := scheduler.New()
	coord := New(commons.NewTestLogger(), tracker.Group, tracker, playback, func() {}, func() *audio.Format { return pcm16() }, sched)
	sender := &fakeSender{}
	coord.RegisterSend(sender)

	meta := pipeline.NewMetadata()
	_, err := coord.ServerMiddleware(context.Background(), pipeline.InputAudioBufferSpeechStartedEvent{}, meta)
	require.NoError(t, err)

	meta2 := pipeline.NewMetadata()
	_, err = coord.ServerMiddleware(context.Background(), pipeline.ResponseAudioDeltaEvent{ItemID: "item-3", ContentIndex: 0}, meta2)
	require.NoError(t, err)

	assert.Equal(t, true, meta2.Values[audioplayer.SkipDuringUserSpeechKey])
	sched.RunOne()
}
