// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package middleware holds the small ambient pipeline stages: event id
// allocation, session-config tracking, and event logging.
package middleware

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rapidaai/realtime-client/internal/pipeline"
)

const eventIDMiddlewareName = "middleware.EventIDAllocator"

// EventIDAllocator fills in event_id on any outbound client event that
// doesn't already carry one, using the client-<serial>-auto pattern.
type EventIDAllocator struct {
	counter uint64
}

func NewEventIDAllocator() *EventIDAllocator {
	return &EventIDAllocator{}
}

func (a *EventIDAllocator) ClientMiddleware(ctx context.Context, event pipeline.ClientEvent, meta *pipeline.Metadata) (pipeline.ClientEvent, error) {
	if err := meta.Touch(eventIDMiddlewareName, false); err != nil {
		return nil, err
	}
	if event.GetEventID() != "" {
		return event, nil
	}
	serial := atomic.AddUint64(&a.counter, 1) - 1
	id := fmt.Sprintf("client-%05d-auto", serial)
	return event.WithEventID(id), nil
}
