// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audioplayer pops pages from the per-speech page buffer on the
// device output thread and bridges playback progress back to the
// cooperative scheduler for the conversation/interruption state it feeds.
package audioplayer

import (
	"context"
	"sync"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/device"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

const MiddlewareName = "audioplayer.Player"

// PlaybackState is a snapshot of what is currently playing, read by the
// interruption coordinator to compute proportional truncation.
type PlaybackState struct {
	CurrentItemID       string
	CurrentContentIndex int
	ElapsedMs           float64
	Playing             bool
}

// PlaybackTracker is supplied by the caller; Player drives it with
// playback progress and interruption notifications.
type PlaybackTracker interface {
	OnPlayMs(itemID string, contentIndex int, ms float64)
	OnInterrupted()
	State() PlaybackState
}

// Speech is one streaming assistant audio content: the buffer backing it,
// and whether more audio is still expected.
type Speech struct {
	ItemID        string
	ContentIndex  int
	Buffer        *audio.Buffer
	HasMoreToCome bool
}

func (s *Speech) IsAccomplished() bool {
	return !s.HasMoreToCome && s.Buffer.IsEmpty()
}

// SkipDuringUserSpeechKey is the metadata key the Interruption Coordinator
// sets to tell Player not to buffer a delta that arrived mid user-speech.
const SkipDuringUserSpeechKey = "audioplayer.during_user_speech"

// Player is the audio player middleware and the device output stream
// owner.
type Player struct {
	logger    commons.Logger
	backend   device.Backend
	scheduler *scheduler.Scheduler
	deviceIdx int
	tracker   PlaybackTracker

	onSpeechEndHandlers []func(itemID string, contentIndex int)

	mu       sync.Mutex
	info     *audio.Info
	stream   device.OutputStream
	deque    []*Speech
	niceSet  bool
}

func New(logger commons.Logger, backend device.Backend, sched *scheduler.Scheduler, deviceIdx int, tracker PlaybackTracker) *Player {
	return &Player{logger: logger, backend: backend, scheduler: sched, deviceIdx: deviceIdx, tracker: tracker}
}

func (p *Player) RegisterOnSpeechEndHandler(h func(itemID string, contentIndex int)) {
	p.onSpeechEndHandlers = append(p.onSpeechEndHandlers, h)
}

// MaybeOpenStream opens the output stream once the format is resolved, and
// is a no-op on subsequent calls.
func (p *Player) MaybeOpenStream(info audio.Info) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}
	stream, err := p.backend.OpenOutput(device.StreamSpec{
		SampleRate:  info.FormatInfo.SampleRate(),
		FrameBytes:  info.NBytesPerPage(),
		DeviceIndex: p.deviceIdx,
	})
	if err != nil {
		return err
	}
	p.info = &info
	p.stream = stream
	stream.SetCallback(p.onAudioOut)
	return nil
}

// onAudioOut runs on the device's output thread. Its critical section is
// pure memory operations: pop one page, and if anything is draining,
// hand the progress update to the scheduler instead of touching
// scheduler-owned state directly.
func (p *Player) onAudioOut() (data []byte, keepGoing bool) {
	p.raiseNicenessOnce()

	p.mu.Lock()
	if len(p.deque) == 0 {
		silence := p.info.SilencePage()
		p.mu.Unlock()
		return silence, true
	}
	head := p.deque[0]
	p.mu.Unlock()

	page, n := head.Buffer.Pop()
	if p.tracker != nil {
		p.scheduler.Post(func() { p.threadSafeUpdate(head, n) })
	}
	return page, true
}

// threadSafeUpdate runs on the scheduler goroutine: it reports the play
// progress, drains any now-accomplished speeches from the head of the
// deque, and fires on-speech-end handlers for each drained entry.
func (p *Player) threadSafeUpdate(speech *Speech, nContentBytes int) {
	msPerByte := p.info.FormatInfo.MsPerByte()
	p.tracker.OnPlayMs(speech.ItemID, speech.ContentIndex, float64(nContentBytes)*msPerByte)

	var drained []*Speech
	p.mu.Lock()
	for len(p.deque) > 0 && p.deque[0].IsAccomplished() {
		drained = append(drained, p.deque[0])
		p.deque = p.deque[1:]
	}
	p.mu.Unlock()

	for _, s := range drained {
		for _, h := range p.onSpeechEndHandlers {
			h(s.ItemID, s.ContentIndex)
		}
	}
}

// Interrupt clears every pending speech and notifies the tracker. Safe to
// call from the scheduler goroutine (the interruption coordinator's
// execution context).
func (p *Player) Interrupt() {
	p.mu.Lock()
	p.deque = nil
	p.mu.Unlock()
	if p.tracker != nil {
		p.tracker.OnInterrupted()
	}
}

func (p *Player) findSpeech(itemID string, contentIndex int) *Speech {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.deque {
		if s.ItemID == itemID && s.ContentIndex == contentIndex {
			return s
		}
	}
	return nil
}

// ServerMiddleware opens the stream on session.updated and feeds the
// active speech deque from the response audio lifecycle events.
func (p *Player) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if err := meta.Touch(MiddlewareName, false); err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case pipeline.SessionUpdatedEvent:
		if p.info != nil {
			return event, nil
		}
		if info, ok := resolveFromSession(e.Session); ok {
			_ = p.MaybeOpenStream(info)
		}
	case pipeline.ResponseContentPartAddedEvent:
		if e.Part.Type == "audio" && p.info != nil {
			p.mu.Lock()
			p.deque = append(p.deque, &Speech{
				ItemID: e.ItemID, ContentIndex: e.ContentIndex,
				Buffer: audio.NewBuffer(*p.info), HasMoreToCome: true,
			})
			p.mu.Unlock()
		}
	case pipeline.ResponseContentPartDoneEvent:
		if s := p.findSpeech(e.ItemID, e.ContentIndex); s != nil {
			p.mu.Lock()
			s.HasMoreToCome = false
			p.mu.Unlock()
		}
	case pipeline.ResponseAudioDeltaEvent:
		if duringUserSpeech, _ := meta.Values[SkipDuringUserSpeechKey].(bool); duringUserSpeech {
			return event, nil
		}
		if s := p.findSpeech(e.ItemID, e.ContentIndex); s != nil {
			raw, err := pipeline.CachedDecodeAudioDelta(meta, e.DeltaB64)
			if err == nil {
				s.Buffer.Append(raw)
			}
		}
	}
	return event, nil
}

func resolveFromSession(session map[string]interface{}) (audio.Info, bool) {
	raw, ok := session["output_audio_format"]
	if !ok {
		return audio.Info{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return audio.Info{}, false
	}
	format := audio.Format(s)
	spec := audio.Spec{Format: format, TargetLatencyMs: 20}
	info, err := spec.Resolve(&format)
	if err != nil {
		return audio.Info{}, false
	}
	return info, true
}
