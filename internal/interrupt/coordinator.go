// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package interrupt implements the interruption coordinator: it detects
// user speech overlapping assistant playback, truncates the in-flight
// item proportionally to elapsed playback, and tells the outbound
// pipeline and the audio player to stop.
package interrupt

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/audioplayer"
	"github.com/rapidaai/realtime-client/internal/conversation"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/rterr"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

const MiddlewareName = "interrupt.Coordinator"

// Sender is the narrow slice of Pipeline the coordinator needs. It is
// registered after the pipeline is constructed (deferred registration)
// because the coordinator's output is itself a stage of the outbound
// pipeline it belongs to.
type Sender interface {
	Send(ctx context.Context, event pipeline.ClientEvent) error
}

// Coordinator holds is_user_talking and the already-interrupted set; an
// interrupt runs at most once per item.
type Coordinator struct {
	logger          commons.Logger
	group           *conversation.Group
	tracker         *conversation.Tracker
	playbackTracker audioplayer.PlaybackTracker
	onInterrupt     func()
	outputFormat    func() *audio.Format
	scheduler       *scheduler.Scheduler

	mu                 sync.Mutex
	isUserTalking      bool
	alreadyInterrupted map[string]bool
	send               Sender
}

func New(
	logger commons.Logger,
	group *conversation.Group,
	tracker *conversation.Tracker,
	playbackTracker audioplayer.PlaybackTracker,
	onInterrupt func(),
	outputFormat func() *audio.Format,
	sched *scheduler.Scheduler,
) *Coordinator {
	return &Coordinator{
		logger:             logger,
		group:              group,
		tracker:            tracker,
		playbackTracker:    playbackTracker,
		onInterrupt:        onInterrupt,
		outputFormat:       outputFormat,
		scheduler:          sched,
		alreadyInterrupted: make(map[string]bool),
	}
}

// RegisterSend completes the deferred wiring: the coordinator can now
// actually emit response.cancel / conversation.item.truncate.
func (c *Coordinator) RegisterSend(s Sender) {
	c.mu.Lock()
	c.send = s
	c.mu.Unlock()
}

func (c *Coordinator) IsUserTalking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isUserTalking
}

// ServerMiddleware must run before audioplayer.Player in the server chain;
// this is asserted via the handler roster rather than by construction
// order alone.
func (c *Coordinator) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if meta.IsInRoster(audioplayer.MiddlewareName) {
		return nil, rterr.NewProtocolViolation("interrupt.Coordinator must run before audioplayer.Player in the server chain", nil)
	}
	if err := meta.Touch(MiddlewareName, false); err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case pipeline.InputAudioBufferSpeechStartedEvent:
		c.mu.Lock()
		c.isUserTalking = true
		c.mu.Unlock()
		state := c.playbackTracker.State()
		if state.Playing {
			c.startInterrupt(ctx, state.CurrentItemID, state.CurrentContentIndex, state.ElapsedMs)
		}
	case pipeline.InputAudioBufferSpeechStoppedEvent:
		c.mu.Lock()
		c.isUserTalking = false
		c.mu.Unlock()
	case pipeline.ResponseAudioDeltaEvent:
		if c.IsUserTalking() {
			c.startInterrupt(ctx, e.ItemID, e.ContentIndex, 0)
			meta.Values[audioplayer.SkipDuringUserSpeechKey] = true
		}
	}
	return event, nil
}

// startInterrupt guards against re-entering the same item and posts the
// interrupt procedure as its own scheduler job, so the synchronous
// middleware call never blocks on the outbound send and interrupt() runs
// on the same single goroutine as every other piece of conversation state
// it touches. This plays the same role asyncio.create_task plays in a
// single-threaded event loop, not a true OS-parallel goroutine.
func (c *Coordinator) startInterrupt(ctx context.Context, itemID string, contentIndex int, elapsedMs float64) {
	c.mu.Lock()
	if c.alreadyInterrupted[itemID] {
		c.mu.Unlock()
		return
	}
	c.alreadyInterrupted[itemID] = true
	c.mu.Unlock()

	c.scheduler.Post(func() { c.interrupt(ctx, itemID, contentIndex, elapsedMs) })
}

// interrupt is the asynchronous procedure spec.md §4.6 describes: stop
// local playback, notify the playback tracker, truncate the transcript
// proportionally, and emit response.cancel then
// conversation.item.truncate. A normal-close race during emission is
// tolerated silently.
func (c *Coordinator) interrupt(ctx context.Context, itemID string, contentIndex int, elapsedMs float64) {
	if c.onInterrupt != nil {
		c.onInterrupt()
	}
	c.playbackTracker.OnInterrupted()

	cell := c.group.GetCellFromID(itemID)
	if cell == nil {
		return
	}
	roundedMs := int(math.Round(elapsedMs))
	if cell.AudioTruncate == nil {
		cell.AudioTruncate = &conversation.AudioTruncate{ContentIndex: contentIndex, ElapsedMs: roundedMs}
	}

	c.truncateTranscriptProportionally(itemID, contentIndex, cell.AudioTotalBytes, elapsedMs)

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		c.logger.Warnf("interrupt fired before send was registered; dropping cancel/truncate for %s", itemID)
		return
	}

	if err := send.Send(ctx, pipeline.NewResponseCancelEvent()); err != nil && !isNormalClose(err) {
		c.logger.Warnf("sending response.cancel during interrupt: %v", err)
		return
	}
	truncate := pipeline.NewConversationItemTruncateEvent(itemID, contentIndex, roundedMs)
	if err := send.Send(ctx, truncate); err != nil && !isNormalClose(err) {
		c.logger.Warnf("sending conversation.item.truncate during interrupt: %v", err)
	}
}

// truncateTranscriptProportionally mirrors the source's approximation: a
// character prefix proportional to elapsed audio versus total audio for
// the item. It may cut mid-syllable; this is preserved as-is.
func (c *Coordinator) truncateTranscriptProportionally(itemID string, contentIndex int, audioTotalBytes int, elapsedMs float64) {
	item := c.tracker.Item(itemID)
	if item == nil || contentIndex >= len(item.Content) {
		return
	}
	format := c.outputFormat()
	if format == nil || audioTotalBytes == 0 {
		return
	}
	fi := audio.FormatInfo{Format: *format}
	totalSpeechMs := float64(audioTotalBytes) * fi.MsPerByte()
	if totalSpeechMs == 0 {
		return
	}
	progress := elapsedMs / totalSpeechMs
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	transcript := item.Content[contentIndex].Transcript
	cut := int(float64(len(transcript)) * progress)
	item.Content[contentIndex].Transcript = transcript[:cut]
}

func isNormalClose(err error) bool {
	return errors.Is(err, pipeline.ErrClosed)
}
