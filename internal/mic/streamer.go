// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package mic streams captured microphone frames to the assistant,
// batching them up to a size threshold before dispatching a single
// input_audio_buffer.append event.
package mic

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/zaf/g711"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/device"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

const middlewareName = "mic.Streamer"

// payloadSizeLimit and payloadSizeThreshold fix the outbound batch size:
// the threshold is 0.9 of the hard limit, leaving headroom for whatever
// frame straddles the boundary.
const (
	payloadSizeLimit     = 15 * 1024 * 1024
	payloadSizeThreshold = payloadSizeLimit * 9 / 10
)

// Sender is the narrow slice of Pipeline the streamer needs: the outbound
// send entry point.
type Sender interface {
	Send(ctx context.Context, event pipeline.ClientEvent) error
}

// Streamer owns the input device stream and the batching worker. Captured
// frames arrive on the device's input thread via SetCallback and are
// handed to the scheduler goroutine with scheduler.Post, which preserves
// FIFO order; all batching and dispatch happens there.
type Streamer struct {
	logger    commons.Logger
	backend   device.Backend
	scheduler *scheduler.Scheduler
	deviceIdx int
	sender    Sender

	// recording is optional; when set, every dispatched batch is also
	// written here, expanded to 16-bit linear PCM first if the source
	// format is A-law/u-law.
	recording io.Writer

	mu          sync.Mutex
	info        *audio.Info
	stream      device.InputStream
	accumulated []byte
	closed      bool
}

func New(logger commons.Logger, backend device.Backend, sched *scheduler.Scheduler, deviceIdx int, sender Sender) *Streamer {
	return &Streamer{logger: logger, backend: backend, scheduler: sched, deviceIdx: deviceIdx, sender: sender}
}

// RegisterSend completes a deferred wiring: a caller that cannot supply a
// Sender until after other collaborators are constructed (e.g. a Pipeline
// that embeds this Streamer's own ServerMiddleware) can pass nil to New and
// call this once the Sender exists.
func (s *Streamer) RegisterSend(sender Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// SetRecording attaches an optional recording sink for the raw (expanded)
// captured audio. Must be called before MaybeOpenStream.
func (s *Streamer) SetRecording(w io.Writer) {
	s.mu.Lock()
	s.recording = w
	s.mu.Unlock()
}

func (s *Streamer) MaybeOpenStream(info audio.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}
	stream, err := s.backend.OpenInput(device.StreamSpec{
		SampleRate:  info.FormatInfo.SampleRate(),
		FrameBytes:  info.NBytesPerPage(),
		DeviceIndex: s.deviceIdx,
	})
	if err != nil {
		return err
	}
	s.info = &info
	s.stream = stream
	stream.SetCallback(s.onAudioIn)
	return nil
}

// onAudioIn runs on the device's input thread; it copies the frame (the
// host may reuse the buffer after the callback returns) and posts the
// handoff, which is the only thread-safe way to reach scheduler state.
func (s *Streamer) onAudioIn(data []byte) {
	frame := append([]byte(nil), data...)
	s.scheduler.Post(func() { s.handleFrame(context.Background(), frame) })
}

func (s *Streamer) handleFrame(ctx context.Context, frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.accumulated = append(s.accumulated, frame...)
	shouldFlush := len(s.accumulated) >= payloadSizeThreshold
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(ctx); err != nil {
			s.logger.Warnf("flushing microphone batch: %v", err)
		}
	}
}

// Flush dispatches whatever has accumulated as a single
// input_audio_buffer.append event. With nothing accumulated it sends
// nothing and returns nil.
func (s *Streamer) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.accumulated
	s.accumulated = nil
	info := s.info
	recording := s.recording
	sender := s.sender
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if recording != nil && info != nil {
		s.writeRecording(recording, info.FormatInfo.Format, batch)
	}
	if sender == nil {
		return fmt.Errorf("mic: Flush called before a Sender was registered")
	}

	event := pipeline.NewInputAudioBufferAppendEvent(base64.StdEncoding.EncodeToString(batch))
	return sender.Send(ctx, event)
}

// writeRecording expands A-law/u-law to 16-bit linear PCM for the
// recording only; the dispatched wire payload is left untouched.
func (s *Streamer) writeRecording(w io.Writer, format audio.Format, batch []byte) {
	var pcm []byte
	switch format {
	case audio.FormatPCMA:
		pcm = g711.DecodeAlaw(batch)
	case audio.FormatPCMU:
		pcm = g711.DecodeUlaw(batch)
	default:
		pcm = batch
	}
	if _, err := w.Write(pcm); err != nil {
		s.logger.Warnf("writing microphone recording: %v", err)
	}
}

// Close marks the streamer closed (frames still queued on the scheduler are
// then discarded), stops the device stream, and calls Flush directly to send
// whatever had accumulated.
func (s *Streamer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	stream := s.stream
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			return err
		}
	}
	return s.Flush(ctx)
}

// ServerMiddleware opens the input stream once the format is known from
// session.updated.
func (s *Streamer) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if err := meta.Touch(middlewareName, false); err != nil {
		return nil, err
	}
	updated, ok := event.(pipeline.SessionUpdatedEvent)
	if !ok {
		return event, nil
	}
	s.mu.Lock()
	alreadyOpen := s.info != nil
	s.mu.Unlock()
	if alreadyOpen {
		return event, nil
	}
	if info, ok := resolveInputFromSession(updated.Session); ok {
		if err := s.MaybeOpenStream(info); err != nil {
			s.logger.Warnf("opening microphone input stream: %v", err)
		}
	}
	return event, nil
}

func resolveInputFromSession(session map[string]interface{}) (audio.Info, bool) {
	raw, ok := session["input_audio_format"]
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
