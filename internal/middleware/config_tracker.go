// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package middleware

import (
	"context"
	"sync"

	"github.com/rapidaai/realtime-client/internal/audio"
	"github.com/rapidaai/realtime-client/internal/pipeline"
)

const configTrackerMiddlewareName = "middleware.ConfigTracker"

// ConfigTracker holds the last session-config snapshot the server
// acknowledged, invalidated the moment a client session.update is sent so
// downstream consumers know an ack is pending. The last-known audio format
// fields survive invalidation: they are the only thing downstream code can
// still rely on while the snapshot is nil.
type ConfigTracker struct {
	mu sync.Mutex

	session map[string]interface{} // nil means "ack pending"

	inputFormat  *audio.Format
	outputFormat *audio.Format
}

func NewConfigTracker() *ConfigTracker {
	return &ConfigTracker{}
}

// Session returns the last acknowledged snapshot, or nil if an update is
// pending acknowledgement.
func (c *ConfigTracker) Session() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *ConfigTracker) InputFormat() *audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputFormat
}

func (c *ConfigTracker) OutputFormat() *audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputFormat
}

func (c *ConfigTracker) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if err := meta.Touch(configTrackerMiddlewareName, false); err != nil {
		return nil, err
	}
	updated, ok := event.(pipeline.SessionUpdatedEvent)
	if !ok {
		return event, nil
	}
	c.mu.Lock()
	c.session = updated.Session
	c.maybeUpdateAudioFormatsLocked(updated.Session)
	c.mu.Unlock()
	return event, nil
}

func (c *ConfigTracker) ClientMiddleware(ctx context.Context, event pipeline.ClientEvent, meta *pipeline.Metadata) (pipeline.ClientEvent, error) {
	if err := meta.Touch(configTrackerMiddlewareName, false); err != nil {
		return nil, err
	}
	update, ok := event.(pipeline.SessionUpdateEvent)
	if !ok {
		return event, nil
	}
	c.mu.Lock()
	c.session = nil
	c.maybeUpdateAudioFormatsLocked(update.Session)
	c.mu.Unlock()
	return event, nil
}

// maybeUpdateAudioFormatsLocked opportunistically refreshes the last-known
// input/output audio format fields from whatever session map is available,
// regardless of whether the snapshot as a whole is being invalidated.
func (c *ConfigTracker) maybeUpdateAudioFormatsLocked(session map[string]interface{}) {
	if session == nil {
		return
	}
	if f, ok := formatFromSession(session, "input_audio_format"); ok {
		c.inputFormat = &f
	}
	if f, ok := formatFromSession(session, "output_audio_format"); ok {
		c.outputFormat = &f
	}
}

func formatFromSession(session map[string]interface{}, key string) (audio.Format, bool) {
	raw, ok := session[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	switch s {
	case string(audio.FormatPCM16), string(audio.FormatPCMA), string(audio.FormatPCMU):
		return audio.Format(s), true
	default:
		return "", false
	}
}
