// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package mic

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/device"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

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

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testInfo() audio.Info {
	return audio.Info{FormatInfo: audio.FormatInfo{Format: audio.FormatPCM16}, NSamplesPerPage: 4}
}

func TestStreamerFlushesOnThreshold(t *testing.T) {
	sched := scheduler.New()
	sender := &fakeSender{}
	s := New(commons.NewTestLogger(), device.NewNull(), sched, 0, sender)
	require.NoError(t, s.MaybeOpenStream(testInfo()))

	bigFrame := make([]byte, payloadSizeThreshold+1)
	s.onAudioIn(bigFrame)
	require.True(t, sched.RunOne())

	assert.Equal(t, 1, sender.count())
}

func TestStreamerDoesNotFlushBelowThreshold(t *testing.T) {
	sched := scheduler.New()
	sender := &fakeSender{}
	s := New(commons.NewTestLogger(), device.NewNull(), sched, 0, sender)
	require.NoError(t, s.MaybeOpenStream(testInfo()))

	s.onAudioIn([]byte{1, 2, 3, 4})
	require.True(t, sched.RunOne())

	assert.Equal(t, 0, sender.count())

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestStreamerCloseFlushesRemainder(t *testing.T) {
	sched := scheduler.New()
	sender := &fakeSender{}
	s := New(commons.NewTestLogger(), device.NewNull(), sched, 0, sender)
	require.NoError(t, s.MaybeOpenStream(testInfo()))

	s.onAudioIn([]byte{9, 9, 9})
	require.True(t, sched.RunOne())

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestStreamerRecordingExpandsALawToPCM(t *testing.T) {
	sched := scheduler.New()
	sender := &fakeSender{}
	s := New(commons.NewTestLogger(), device.NewNull(), sched, 0, sender)
	var rec bytes.Buffer
	s.SetRecording(&rec)

	info := audio.Info{FormatInfo: audio.FormatInfo{Format: audio.FormatPCMA}, NSamplesPerPage: 4}
	require.NoError(t, s.MaybeOpenStream(info))

	s.onAudioIn([]byte{0xD5, 0xD5})
	require.True(t, sched.RunOne())
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, 1, sender.count())
	assert.Greater(t, rec.Len(), 0)
}
