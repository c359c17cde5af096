// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package session wires every middleware into the two ordered chains
// (server chain: Configuration Tracker -> State Engine -> Interruption ->
// Audio Player -> Mic Streamer -> Logging; client chain: Event ID
// Allocator -> Configuration Tracker -> State Engine -> Logging), gives
// the Pipeline and the interruption coordinator the same Scheduler the
// audio player and mic streamer already use, and resolves the
// interruption coordinator's deferred send dependency once the pipeline
// exists. Every piece of shared state this wiring touches is only ever
// mutated on the scheduler goroutine.
package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/realtime-client/internal/audioplayer"
	"github.com/rapidaai/realtime-client/internal/conversation"
	"github.com/rapidaai/realtime-client/internal/device"
	"github.com/rapidaai/realtime-client/internal/interrupt"
	"github.com/rapidaai/realtime-client/internal/mic"
	"github.com/rapidaai/realtime-client/internal/middleware"
	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/scheduler"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

// Session bundles one realtime conversation's worth of wired-up state: the
// pipeline plus the collaborators an embedder may still want direct
// handles to (e.g. to register a recording sink or a speech-end callback).
type Session struct {
	Pipeline     *pipeline.Pipeline
	Scheduler    *scheduler.Scheduler
	ConfigTrack  *middleware.ConfigTracker
	Conversation *conversation.Tracker
	AudioPlayer  *audioplayer.Player
	Mic          *mic.Streamer
	Interrupt    *interrupt.Coordinator
}

// Options configures New.
type Options struct {
	Logger          commons.Logger
	Transport       pipeline.Transport
	Backend         device.Backend
	InputDeviceIdx  int
	OutputDeviceIdx int
}

// New constructs every middleware, assembles the two ordered chains, and
// builds the Pipeline. The interruption coordinator's send dependency is a
// deferred registration (RegisterSend) resolved here, right after the
// Pipeline is built, breaking the construction cycle: the coordinator's
// output is itself one stage of the very pipeline it belongs to.
func New(opts Options) (*Session, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("session: Logger is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("session: Transport is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("session: Backend is required")
	}

	sched := scheduler.New()
	configTracker := middleware.NewConfigTracker()
	convTracker := conversation.NewTracker(opts.Logger)
	playbackTracker := audioplayer.NewDefaultPlaybackTracker()
	player := audioplayer.New(opts.Logger, opts.Backend, sched, opts.OutputDeviceIdx, playbackTracker)
	micStreamer := mic.New(opts.Logger, opts.Backend, sched, opts.InputDeviceIdx, nil)
	coordinator := interrupt.New(opts.Logger, convTracker.Group, convTracker, playbackTracker, player.Interrupt, configTracker.OutputFormat, sched)
	eventIDs := middleware.NewEventIDAllocator()
	logging := middleware.NewLogging(opts.Logger)

	server := []pipeline.ServerMiddleware{
		configTracker.ServerMiddleware,
		convTracker.ServerMiddleware,
		coordinator.ServerMiddleware,
		player.ServerMiddleware,
		micStreamer.ServerMiddleware,
		logging.ServerMiddleware,
	}
	client := []pipeline.ClientMiddleware{
		eventIDs.ClientMiddleware,
		configTracker.ClientMiddleware,
		convTracker.ClientMiddleware,
		logging.ClientMiddleware,
	}

	p := pipeline.New(opts.Logger, opts.Transport, sched, server, client)
	coordinator.RegisterSend(p)
	micStreamer.RegisterSend(p)

	return &Session{
		Pipeline:     p,
		Scheduler:    sched,
		ConfigTrack:  configTracker,
		Conversation: convTracker,
		AudioPlayer:  player,
		Mic:          micStreamer,
		Interrupt:    coordinator,
	}, nil
}

// Run drives the scheduler and the pipeline's receive loop until ctx is
// cancelled or the transport closes orderly.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Scheduler.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return s.Pipeline.Run(gCtx)
	})
	return g.Wait()
}
