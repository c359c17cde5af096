// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package middleware

import (
	"context"
	"fmt"

	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

const loggingMiddlewareName = "middleware.Logging"

// responseCancelNotActive is the transient, expected race where the client
// cancels a response that already finished; logged at info rather than
// warning.
const responseCancelNotActive = "response_cancel_not_active"

// Logging is a pure observer: it never mutates or drops an event. It
// routes the benign response_cancel_not_active error to info, every other
// error event to warning, and everything else to debug, eliding audio
// payload bytes from the rendered line.
type Logging struct {
	logger commons.Logger
}

func NewLogging(logger commons.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if err := meta.Touch(loggingMiddlewareName, false); err != nil {
		return nil, err
	}
	if errEvent, ok := event.(pipeline.RealtimeErrorEvent); ok {
		if errEvent.Code == responseCancelNotActive {
			l.logger.Infof("server event %s: %s", errEvent.Code, errEvent.Message)
		} else {
			l.logger.Warnf("server error event %s: %s", errEvent.Code, errEvent.Message)
		}
		return event, nil
	}
	l.logger.Debugf("server event: %s", omitAudioServer(event))
	return event, nil
}

func (l *Logging) ClientMiddleware(ctx context.Context, event pipeline.ClientEvent, meta *pipeline.Metadata) (pipeline.ClientEvent, error) {
	if err := meta.Touch(loggingMiddlewareName, false); err != nil {
		return nil, err
	}
	l.logger.Debugf("client event: %s", omitAudioClient(event))
	return event, nil
}

// omitAudioServer renders a server event for logging with base64 audio
// payloads replaced by a byte-count placeholder.
func omitAudioServer(event pipeline.ServerEvent) string {
	switch e := event.(type) {
	case pipeline.ResponseAudioDeltaEvent:
		return fmt.Sprintf("%s item=%s content_index=%d audio=%s",
			e.EventType(), e.ItemID, e.ContentIndex, omittedAudioPlaceholder(e.DeltaB64))
	default:
		return event.EventType()
	}
}

func omitAudioClient(event pipeline.ClientEvent) string {
	switch e := event.(type) {
	case pipeline.InputAudioBufferAppendEvent:
		return fmt.Sprintf("%s audio=%s", e.EventType(), omittedAudioPlaceholder(e.AudioB64))
	default:
		return event.EventType()
	}
}

func omittedAudioPlaceholder(b64 string) string {
	// base64 expands by 4/3; approximate the original byte count without
	// decoding, which would defeat the point of eliding it.
	n := len(b64) * 3 / 4
	return fmt.Sprintf("<omitted %d bytes>", n)
}
