// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pipeline

import (
	"encoding/json"

	"github.com/rapidaai/realtime-client/internal/rterr"
)

// wireItem is the wire shape of a conversation item. Only its "role" field
// names the item's kind; the wire "type" field is not decoded.
type wireItem struct {
	ID             string        `json:"id"`
	Role           string        `json:"role"`
	Status         string        `json:"status"`
	CallID         string        `json:"call_id"`
	Name           string        `json:"name"`
	Arguments      string        `json:"arguments"`
	Output         string        `json:"output"`
	Content        []wireContent `json:"content"`
}

type wireContent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Audio      string `json:"audio"`
	Transcript string `json:"transcript"`
}

func (c wireContent) toPayload() ItemContentPayload {
	return ItemContentPayload{Type: c.Type, Text: c.Text, AudioB64: c.Audio, Transcript: c.Transcript}
}

func (it wireItem) toPayload() ItemPayload {
	content := make([]ItemContentPayload, len(it.Content))
	for i, c := range it.Content {
		content[i] = c.toPayload()
	}
	return ItemPayload{
		ID: it.ID, Role: it.Role, Status: it.Status,
		CallID: it.CallID, Name: it.Name, Arguments: it.Arguments, Output: it.Output,
		Content: content,
	}
}

type wireResponse struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (r wireResponse) toPayload() ResponsePayload {
	return ResponsePayload{ID: r.ID, ConversationID: r.ConversationID, Metadata: r.Metadata}
}

// wireEnvelope is one flat struct holding every field any decoded server
// event reads. A single json.Unmarshal fills it; the "type" tag then selects
// the concrete Go event and which of these fields it copies.
type wireEnvelope struct {
	Type             string          `json:"type"`
	EventID          string          `json:"event_id"`
	Session          json.RawMessage `json:"session"`
	Item             wireItem        `json:"item"`
	PreviousItemID   *string         `json:"previous_item_id"`
	ItemID           string          `json:"item_id"`
	ContentIndex     int             `json:"content_index"`
	Delta            string          `json:"delta"`
	Transcript       string          `json:"transcript"`
	Error            json.RawMessage `json:"error"`
	Code             string          `json:"code"`
	Message          string          `json:"message"`
	Response         wireResponse    `json:"response"`
	ResponseID       string          `json:"response_id"`
	Part             wireContent     `json:"part"`
	AudioEndMs       int             `json:"audio_end_ms"`
	Audio            string          `json:"audio"`
}

// normalizePreviousItemID applies the wire rule that an empty-string
// previous_item_id means root, not a literal empty id.
func normalizePreviousItemID(raw *string) string {
	if raw == nil || *raw == "" {
		return ""
	}
	return *raw
}

// DecodeServerEvent parses one inbound frame into the closed ServerEvent
// set, dispatching on the "type" field.
func DecodeServerEvent(raw []byte) (ServerEvent, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &rterr.DecodeError{Raw: raw, Err: err}
	}
	b := base{Type: env.Type}

	switch env.Type {
	case EventTypeSessionCreated:
		return SessionCreatedEvent{base: b, Session: decodeSession(env.Session)}, nil
	case EventTypeSessionUpdated:
		return SessionUpdatedEvent{base: b, Session: decodeSession(env.Session)}, nil
	case EventTypeConversationItemAdded:
		return ConversationItemAddedEvent{
			base: b, Item: env.Item.toPayload(),
			PreviousItemID: normalizePreviousItemID(env.PreviousItemID),
		}, nil
	case EventTypeConversationItemDone:
		return ConversationItemDoneEvent{base: b, Item: env.Item.toPayload()}, nil
	case EventTypeConversationItemInputAudioTranscriptionDelta:
		return ConversationItemInputAudioTranscriptionDeltaEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, Delta: env.Delta,
		}, nil
	case EventTypeConversationItemInputAudioTranscriptionCompleted:
		return ConversationItemInputAudioTranscriptionCompletedEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, Transcript: env.Transcript,
		}, nil
	case EventTypeConversationItemInputAudioTranscriptionFailed:
		return ConversationItemInputAudioTranscriptionFailedEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, Error: string(env.Error),
		}, nil
	case EventTypeConversationItemTruncated:
		return ConversationItemTruncatedEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, AudioEndMs: env.AudioEndMs,
		}, nil
	case EventTypeConversationItemDeleted:
		return ConversationItemDeletedEvent{base: b, ItemID: env.ItemID}, nil
	case EventTypeResponseCreated:
		return ResponseCreatedEvent{base: b, Response: env.Response.toPayload()}, nil
	case EventTypeResponseOutputItemAdded:
		return ResponseOutputItemAddedEvent{base: b, ResponseID: env.ResponseID, Item: env.Item.toPayload()}, nil
	case EventTypeResponseOutputItemDone:
		return ResponseOutputItemDoneEvent{base: b, ResponseID: env.ResponseID, Item: env.Item.toPayload()}, nil
	case EventTypeResponseContentPartAdded:
		return ResponseContentPartAddedEvent{
			base: b, ItemID: env.ItemID, ResponseID: env.ResponseID,
			ContentIndex: env.ContentIndex, Part: env.Part.toPayload(),
		}, nil
	case EventTypeResponseContentPartDone:
		return ResponseContentPartDoneEvent{
			base: b, ItemID: env.ItemID, ResponseID: env.ResponseID, ContentIndex: env.ContentIndex,
		}, nil
	case EventTypeResponseAudioDelta:
		return ResponseAudioDeltaEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, DeltaB64: env.Delta,
		}, nil
	case EventTypeResponseAudioTranscriptDelta:
		return ResponseAudioTranscriptDeltaEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, Delta: env.Delta,
		}, nil
	case EventTypeResponseTextDelta:
		return ResponseTextDeltaEvent{
			base: b, ItemID: env.ItemID, ContentIndex: env.ContentIndex, Delta: env.Delta,
		}, nil
	case EventTypeResponseDone:
		return ResponseDoneEvent{base: b, Response: env.Response.toPayload()}, nil
	case EventTypeInputAudioBufferSpeechStarted:
		return InputAudioBufferSpeechStartedEvent{base: b, ItemID: env.ItemID}, nil
	case EventTypeInputAudioBufferSpeechStopped:
		return InputAudioBufferSpeechStoppedEvent{base: b, ItemID: env.ItemID}, nil
	case EventTypeError:
		return RealtimeErrorEvent{base: b, Code: env.Code, Message: env.Message}, nil
	default:
		return nil, &rterr.DecodeError{Raw: raw, Err: errUnknownEventType(env.Type)}
	}
}

func decodeSession(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}

type errUnknownEventType string

func (e errUnknownEventType) Error() string { return "unrecognized server event type: " + string(e) }

// EncodeClientEvent renders a ClientEvent back to its wire JSON shape.
func EncodeClientEvent(event ClientEvent) ([]byte, error) {
	switch e := event.(type) {
	case SessionUpdateEvent:
		return json.Marshal(struct {
			Type    string                 `json:"type"`
			EventID string                 `json:"event_id,omitempty"`
			Session map[string]interface{} `json:"session"`
		}{Type: e.Type, EventID: e.EventID, Session: e.Session})
	case ConversationItemCreateEvent:
		prev := interface{}(nil)
		if e.PreviousItemID != "" {
			prev = e.PreviousItemID
		}
		return json.Marshal(struct {
			Type           string      `json:"type"`
			EventID        string      `json:"event_id,omitempty"`
			Item           itemOut     `json:"item"`
			PreviousItemID interface{} `json:"previous_item_id"`
		}{Type: e.Type, EventID: e.EventID, Item: toItemOut(e.Item), PreviousItemID: prev})
	case InputAudioBufferAppendEvent:
		return json.Marshal(struct {
			Type    string `json:"type"`
			EventID string `json:"event_id,omitempty"`
			Audio   string `json:"audio"`
		}{Type: e.Type, EventID: e.EventID, Audio: e.AudioB64})
	case InputAudioBufferCommitEvent:
		return json.Marshal(struct {
			Type    string `json:"type"`
			EventID string `json:"event_id,omitempty"`
		}{Type: e.Type, EventID: e.EventID})
	case ResponseCreateEvent:
		return json.Marshal(struct {
			Type    string `json:"type"`
			EventID string `json:"event_id,omitempty"`
		}{Type: e.Type, EventID: e.EventID})
	case ResponseCancelEvent:
		return json.Marshal(struct {
			Type    string `json:"type"`
			EventID string `json:"event_id,omitempty"`
		}{Type: e.Type, EventID: e.EventID})
	case ConversationItemTruncateEvent:
		return json.Marshal(struct {
			Type         string `json:"type"`
			EventID      string `json:"event_id,omitempty"`
			ItemID       string `json:"item_id"`
			ContentIndex int    `json:"content_index"`
			AudioEndMs   int    `json:"audio_end_ms"`
		}{Type: e.Type, EventID: e.EventID, ItemID: e.ItemID, ContentIndex: e.ContentIndex, AudioEndMs: e.AudioEndMs})
	default:
		return nil, rterr.NewProtocolViolation("unrecognized client event for encode", nil)
	}
}

type itemOut struct {
	ID        string        `json:"id,omitempty"`
	Role      string        `json:"role,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
	Content   []wireContent `json:"content,omitempty"`
}

func toItemOut(p ItemPayload) itemOut {
	content := make([]wireContent, len(p.Content))
	for i, c := range p.Content {
		content[i] = wireContent{Type: c.Type, Text: c.Text, Audio: c.AudioB64, Transcript: c.Transcript}
	}
	return itemOut{
		ID: p.ID, Role: p.Role, CallID: p.CallID, Name: p.Name, Arguments: p.Arguments,
		Output: p.Output, Content: content,
	}
}
