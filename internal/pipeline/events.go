// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pipeline

// Event is the marker both directions' sealed event sets implement.
type Event interface {
	EventType() string
}

// ServerEvent is implemented by every server-to-client event this module
// consumes. The set is closed: codec.go's type switch is exhaustive over
// exactly these.
type ServerEvent interface {
	Event
	isServerEvent()
}

// ClientEvent is implemented by every client-to-server event this module
// emits. GetEventID/WithEventID let the event id allocator fill in a
// missing id without a type switch over every variant.
type ClientEvent interface {
	Event
	isClientEvent()
	GetEventID() string
	WithEventID(id string) ClientEvent
}

type base struct{ Type string }

func (b base) EventType() string { return b.Type }

// --- server events -----------------------------------------------------

type SessionCreatedEvent struct {
	base
	Session map[string]interface{}
}

type SessionUpdatedEvent struct {
	base
	Session map[string]interface{}
}

// ItemPayload is the wire representation of conversation.Item used by
// server events that carry an item inline.
type ItemPayload struct {
	ID        string
	Role      string
	Status    string
	CallID    string
	Name      string
	Arguments string
	Output    string
	Content   []ItemContentPayload
}

type ItemContentPayload struct {
	Type       string
	Text       string
	AudioB64   string
	Transcript string
}

type ConversationItemAddedEvent struct {
	base
	Item             ItemPayload
	PreviousItemID   string
}

type ConversationItemDoneEvent struct {
	base
	Item ItemPayload
}

type ConversationItemInputAudioTranscriptionDeltaEvent struct {
	base
	ItemID       string
	ContentIndex int
	Delta        string
}

type ConversationItemInputAudioTranscriptionCompletedEvent struct {
	base
	ItemID       string
	ContentIndex int
	Transcript   string
}

type ConversationItemInputAudioTranscriptionFailedEvent struct {
	base
	ItemID       string
	ContentIndex int
	Error        string
}

type ConversationItemTruncatedEvent struct {
	base
	ItemID       string
	ContentIndex int
	AudioEndMs   int
}

type ConversationItemDeletedEvent struct {
	base
	ItemID string
}

type ResponsePayload struct {
	ID             string
	ConversationID string
	Metadata       map[string]interface{}
}

type ResponseCreatedEvent struct {
	base
	Response ResponsePayload
}

type ResponseOutputItemAddedEvent struct {
	base
	ResponseID string
	Item       ItemPayload
}

type ResponseOutputItemDoneEvent struct {
	base
	ResponseID string
	Item       ItemPayload
}

type ResponseContentPartAddedEvent struct {
	base
	ItemID       string
	ResponseID   string
	ContentIndex int
	Part         ItemContentPayload
}

type ResponseContentPartDoneEvent struct {
	base
	ItemID       string
	ResponseID   string
	ContentIndex int
}

type ResponseAudioDeltaEvent struct {
	base
	ItemID       string
	ContentIndex int
	DeltaB64     string
}

type ResponseAudioTranscriptDeltaEvent struct {
	base
	ItemID       string
	ContentIndex int
	Delta        string
}

type ResponseTextDeltaEvent struct {
	base
	ItemID       string
	ContentIndex int
	Delta        string
}

type ResponseDoneEvent struct {
	base
	Response ResponsePayload
}

type InputAudioBufferSpeechStartedEvent struct {
	base
	ItemID string
}

type InputAudioBufferSpeechStoppedEvent struct {
	base
	ItemID string
}

type RealtimeErrorEvent struct {
	base
	Code    string
	Message string
}

func (SessionCreatedEvent) isServerEvent()                                         {}
func (SessionUpdatedEvent) isServerEvent()                                         {}
func (ConversationItemAddedEvent) isServerEvent()                                  {}
func (ConversationItemDoneEvent) isServerEvent()                                   {}
func (ConversationItemInputAudioTranscriptionDeltaEvent) isServerEvent()           {}
func (ConversationItemInputAudioTranscriptionCompletedEvent) isServerEvent()       {}
func (ConversationItemInputAudioTranscriptionFailedEvent) isServerEvent()          {}
func (ConversationItemTruncatedEvent) isServerEvent()                              {}
func (ConversationItemDeletedEvent) isServerEvent()                                {}
func (ResponseCreatedEvent) isServerEvent()                                        {}
func (ResponseOutputItemAddedEvent) isServerEvent()                                {}
func (ResponseOutputItemDoneEvent) isServerEvent()                                 {}
func (ResponseContentPartAddedEvent) isServerEvent()                               {}
func (ResponseContentPartDoneEvent) isServerEvent()                                {}
func (ResponseAudioDeltaEvent) isServerEvent()                                     {}
func (ResponseAudioTranscriptDeltaEvent) isServerEvent()                           {}
func (ResponseTextDeltaEvent) isServerEvent()                                      {}
func (ResponseDoneEvent) isServerEvent()                                           {}
func (InputAudioBufferSpeechStartedEvent) isServerEvent()                          {}
func (InputAudioBufferSpeechStoppedEvent) isServerEvent()                          {}
func (RealtimeErrorEvent) isServerEvent()                                          {}

// --- client events -------------------------------------------------------
//
// Constructors (rather than plain struct literals) exist because `base` is
// unexported: callers outside this package cannot set EventType() by hand,
// so every client event is built through one of these.

func NewSessionUpdateEvent(session map[string]interface{}) SessionUpdateEvent {
	return SessionUpdateEvent{base: base{Type: EventTypeSessionUpdate}, Session: session}
}

func NewConversationItemCreateEvent(item ItemPayload, previousItemID string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		base: base{Type: EventTypeConversationItemCreate}, Item: item, PreviousItemID: previousItemID,
	}
}

func NewInputAudioBufferAppendEvent(audioB64 string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{base: base{Type: EventTypeInputAudioBufferAppend}, AudioB64: audioB64}
}

func NewInputAudioBufferCommitEvent() InputAudioBufferCommitEvent {
	return InputAudioBufferCommitEvent{base: base{Type: EventTypeInputAudioBufferCommit}}
}

func NewResponseCreateEvent() ResponseCreateEvent {
	return ResponseCreateEvent{base: base{Type: EventTypeResponseCreate}}
}

func NewResponseCancelEvent() ResponseCancelEvent {
	return ResponseCancelEvent{base: base{Type: EventTypeResponseCancel}}
}

func NewConversationItemTruncateEvent(itemID string, contentIndex int, audioEndMs int) ConversationItemTruncateEvent {
	return ConversationItemTruncateEvent{
		base: base{Type: EventTypeConversationItemTruncate}, ItemID: itemID,
		ContentIndex: contentIndex, AudioEndMs: audioEndMs,
	}
}

type SessionUpdateEvent struct {
	base
	EventID string
	Session map[string]interface{}
}

type ConversationItemCreateEvent struct {
	base
	EventID        string
	Item           ItemPayload
	PreviousItemID string
}

type InputAudioBufferAppendEvent struct {
	base
	EventID string
	AudioB64 string
}

type InputAudioBufferCommitEvent struct {
	base
	EventID string
}

type ResponseCreateEvent struct {
	base
	EventID string
}

type ResponseCancelEvent struct {
	base
	EventID string
}

type ConversationItemTruncateEvent struct {
	base
	EventID      string
	ItemID       string
	ContentIndex int
	AudioEndMs   int
}

func (SessionUpdateEvent) isClientEvent()            {}
func (ConversationItemCreateEvent) isClientEvent()   {}
func (InputAudioBufferAppendEvent) isClientEvent()   {}
func (InputAudioBufferCommitEvent) isClientEvent()   {}
func (ResponseCreateEvent) isClientEvent()           {}
func (ResponseCancelEvent) isClientEvent()           {}
func (ConversationItemTruncateEvent) isClientEvent() {}

func (e SessionUpdateEvent) GetEventID() string            { return e.EventID }
func (e ConversationItemCreateEvent) GetEventID() string   { return e.EventID }
func (e InputAudioBufferAppendEvent) GetEventID() string   { return e.EventID }
func (e InputAudioBufferCommitEvent) GetEventID() string   { return e.EventID }
func (e ResponseCreateEvent) GetEventID() string           { return e.EventID }
func (e ResponseCancelEvent) GetEventID() string           { return e.EventID }
func (e ConversationItemTruncateEvent) GetEventID() string { return e.EventID }

func (e SessionUpdateEvent) WithEventID(id string) ClientEvent            { e.EventID = id; return e }
func (e ConversationItemCreateEvent) WithEventID(id string) ClientEvent   { e.EventID = id; return e }
func (e InputAudioBufferAppendEvent) WithEventID(id string) ClientEvent   { e.EventID = id; return e }
func (e InputAudioBufferCommitEvent) WithEventID(id string) ClientEvent   { e.EventID = id; return e }
func (e ResponseCreateEvent) WithEventID(id string) ClientEvent           { e.EventID = id; return e }
func (e ResponseCancelEvent) WithEventID(id string) ClientEvent           { e.EventID = id; return e }
func (e ConversationItemTruncateEvent) WithEventID(id string) ClientEvent { e.EventID = id; return e }

const (
	EventTypeSessionCreated                                    = "session.created"
	EventTypeSessionUpdated                                     = "session.updated"
	EventTypeConversationItemAdded                              = "conversation.item.added"
	EventTypeConversationItemDone                               = "conversation.item.done"
	EventTypeConversationItemInputAudioTranscriptionDelta       = "conversation.item.input_audio_transcription.delta"
	EventTypeConversationItemInputAudioTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	EventTypeConversationItemInputAudioTranscriptionFailed      = "conversation.item.input_audio_transcription.failed"
	EventTypeConversationItemTruncated                          = "conversation.item.truncated"
	EventTypeConversationItemDeleted                            = "conversation.item.deleted"
	EventTypeResponseCreated                                    = "response.created"
	EventTypeResponseOutputItemAdded                            = "response.output_item.added"
	EventTypeResponseOutputItemDone                             = "response.output_item.done"
	EventTypeResponseContentPartAdded                           = "response.content_part.added"
	EventTypeResponseContentPartDone                            = "response.content_part.done"
	EventTypeResponseAudioDelta                                 = "response.audio.delta"
	EventTypeResponseAudioTranscriptDelta                       = "response.audio_transcript.delta"
	EventTypeResponseTextDelta                                  = "response.text.delta"
	EventTypeResponseDone                                       = "response.done"
	EventTypeInputAudioBufferSpeechStarted                      = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped                      = "input_audio_buffer.speech_stopped"
	EventTypeError                                              = "error"

	EventTypeSessionUpdate              = "session.update"
	EventTypeConversationItemCreate     = "conversation.item.create"
	EventTypeInputAudioBufferAppend     = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit     = "input_audio_buffer.commit"
	EventTypeResponseCreate             = "response.create"
	EventTypeResponseCancel             = "response.cancel"
	EventTypeConversationItemTruncate   = "conversation.item.truncate"
)
