// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package conversation

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/internal/rterr"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

const middlewareName = "conversation.Tracker"

// pendingResponseItem is a response-originated item dangling between
// response.output_item.added and the paired conversation.item.added.
type pendingResponseItem struct {
	responseID string
	item       Item
}

// Tracker is the conversation state engine: it owns the Group and the
// Impatience reconciliation between locally-speculative inserts,
// response-originated inserts, and server confirmations.
type Tracker struct {
	logger commons.Logger
	Group  *Group

	items     map[string]*Item
	responses map[string]Response

	awaitingServerConfirmation   map[string]Item
	awaitingMainSequenceInsertion map[string]pendingResponseItem
}

func NewTracker(logger commons.Logger) *Tracker {
	return &Tracker{
		logger:                        logger,
		Group:                         NewGroup(),
		items:                         make(map[string]*Item),
		responses:                    make(map[string]Response),
		awaitingServerConfirmation:   make(map[string]Item),
		awaitingMainSequenceInsertion: make(map[string]pendingResponseItem),
	}
}

// ClientMiddleware rewrites outbound conversation.item.create events with a
// generated item id / previous-item-id, performs the local speculative
// insert, and forwards every other event untouched.
func (t *Tracker) ClientMiddleware(ctx context.Context, event pipeline.ClientEvent, meta *pipeline.Metadata) (pipeline.ClientEvent, error) {
	if err := meta.Touch(middlewareName, false); err != nil {
		return nil, err
	}
	create, ok := event.(pipeline.ConversationItemCreateEvent)
	if !ok {
		return event, nil
	}

	itemID := create.Item.ID
	if itemID == "" {
		itemID = clientSetID()
	}
	previousItemID := create.PreviousItemID
	if previousItemID == "" {
		previousItemID = t.Group.LastItemID()
	}

	item := create.Item
	item.ID = itemID
	local := itemPayloadToItem(item)

	cell := &Cell{ItemID: itemID}
	if err := t.Group.InsertAfter(cell, previousItemID); err != nil {
		return nil, err
	}
	t.items[itemID] = &local
	t.awaitingServerConfirmation[itemID] = local
	t.Group.Touch(itemID, create.EventID)

	create.Item = item
	create.PreviousItemID = previousItemID
	if IsRoot(previousItemID) {
		create.PreviousItemID = ""
	}
	return create, nil
}

func clientSetID() string {
	id := "client-set-" + uuid.NewString()
	if len(id) > 31 {
		id = id[:31]
	}
	return id
}

// ServerMiddleware dispatches every server event the state engine cares
// about; every other event passes through untouched.
func (t *Tracker) ServerMiddleware(ctx context.Context, event pipeline.ServerEvent, meta *pipeline.Metadata) (pipeline.ServerEvent, error) {
	if err := meta.Touch(middlewareName, false); err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case pipeline.ConversationItemAddedEvent:
		if err := t.handleItemAdded(e); err != nil {
			return nil, err
		}
	case pipeline.ConversationItemDoneEvent:
		if err := t.handleItemDoneLike(e.Item); err != nil {
			return nil, err
		}
	case pipeline.ResponseOutputItemDoneEvent:
		if err := t.handleItemDoneLike(e.Item); err != nil {
			return nil, err
		}
	case pipeline.ResponseOutputItemAddedEvent:
		if err := t.handleResponseOutputItemAdded(e); err != nil {
			return nil, err
		}
	case pipeline.ConversationItemInputAudioTranscriptionDeltaEvent:
		t.appendTranscript(e.ItemID, e.ContentIndex, e.Delta)
	case pipeline.ConversationItemInputAudioTranscriptionCompletedEvent:
		t.setTranscript(e.ItemID, e.ContentIndex, e.Transcript)
	case pipeline.ConversationItemInputAudioTranscriptionFailedEvent:
		t.setTranscript(e.ItemID, e.ContentIndex, "<transcription failed: "+e.Error+">")
	case pipeline.ResponseAudioDeltaEvent:
		t.accumulateAudioBytes(meta, e.ItemID, e.DeltaB64)
	case pipeline.ResponseAudioTranscriptDeltaEvent:
		t.appendTranscript(e.ItemID, e.ContentIndex, e.Delta)
	case pipeline.ResponseTextDeltaEvent:
		t.appendText(e.ItemID, e.ContentIndex, e.Delta)
	case pipeline.ResponseContentPartAddedEvent:
		if err := t.handleContentPartAdded(e); err != nil {
			return nil, err
		}
	case pipeline.ResponseContentPartDoneEvent:
		if err := t.assertContentPartPresent(e.ItemID, e.ContentIndex); err != nil {
			return nil, err
		}
	case pipeline.ConversationItemTruncatedEvent:
		t.handleTruncated(e)
	case pipeline.ConversationItemDeletedEvent:
		t.Group.Touch(e.ItemID, "")
		_ = t.Group.Trash(e.ItemID)
	case pipeline.ResponseCreatedEvent:
		if err := t.handleResponseCreated(e.Response); err != nil {
			return nil, err
		}
	case pipeline.ResponseDoneEvent:
		t.responses[e.Response.ID] = Response{
			ID: e.Response.ID, ConversationID: e.Response.ConversationID, Metadata: e.Response.Metadata,
		}
	}
	return event, nil
}

func itemPayloadToItem(p pipeline.ItemPayload) Item {
	content := make([]ContentPart, len(p.Content))
	for i, c := range p.Content {
		audio, _ := base64.StdEncoding.DecodeString(c.AudioB64)
		content[i] = ContentPart{Type: c.Type, Text: c.Text, Audio: audio, Transcript: c.Transcript}
	}
	return Item{
		ID: p.ID, Role: Role(p.Role), Status: p.Status,
		CallID: p.CallID, Name: p.Name, Arguments: p.Arguments, Output: p.Output,
		Content: content,
	}
}

// handleItemAdded is the heart of Impatience: reconcile a
// conversation.item.added against the two pending sets, which are
// mutually exclusive.
func (t *Tracker) handleItemAdded(e pipeline.ConversationItemAddedEvent) error {
	serverItem := itemPayloadToItem(e.Item)
	itemID := serverItem.ID

	localPending, isLocallySynced := t.awaitingServerConfirmation[itemID]
	responsePending, isResponsePending := t.awaitingMainSequenceInsertion[itemID]

	if isLocallySynced && isResponsePending {
		return rterr.NewProtocolViolation("item pending both local and response-originated reconciliation: "+itemID, nil)
	}

	switch {
	case isLocallySynced:
		delete(t.awaitingServerConfirmation, itemID)
		if !localPending.EqualIgnoringStatus(serverItem) {
			return rterr.NewProtocolViolation("server item diverges from locally speculative item: "+itemID, nil)
		}
		t.items[itemID] = &serverItem
		if err := t.Group.Move(itemID, e.PreviousItemID); err != nil {
			return err
		}
	case isResponsePending:
		delete(t.awaitingMainSequenceInsertion, itemID)
		if !responsePending.item.EqualIgnoringStatus(serverItem) {
			return rterr.NewProtocolViolation("server item diverges from response-pending item: "+itemID, nil)
		}
		t.items[itemID] = &serverItem
		cell := &Cell{ItemID: itemID, ResponseID: responsePending.responseID}
		if err := t.Group.InsertAfter(cell, e.PreviousItemID); err != nil {
			return err
		}
	default:
		t.items[itemID] = &serverItem
		cell := &Cell{ItemID: itemID}
		if err := t.Group.InsertAfter(cell, e.PreviousItemID); err != nil {
			return err
		}
	}
	t.Group.Touch(itemID, "")
	return nil
}

// handleResponseOutputItemAdded implements the response-originated
// out-of-band / in-band split: a response with no bound conversation id
// goes straight to the out-of-band map; one with a bound conversation id
// dangles awaiting the paired conversation.item.added.
func (t *Tracker) handleResponseOutputItemAdded(e pipeline.ResponseOutputItemAddedEvent) error {
	item := itemPayloadToItem(e.Item)
	t.items[item.ID] = &item

	response, known := t.responses[e.ResponseID]
	if known && response.ConversationID == "" {
		cell := &Cell{ItemID: item.ID, ResponseID: e.ResponseID}
		return t.Group.SafeAddOOB(cell)
	}
	t.awaitingMainSequenceInsertion[item.ID] = pendingResponseItem{responseID: e.ResponseID, item: item}
	return nil
}

func (t *Tracker) handleResponseCreated(r pipeline.ResponsePayload) error {
	if r.ConversationID != "" {
		if err := t.Group.AssertMainConversationID(r.ConversationID); err != nil {
			return err
		}
	}
	if _, collides := t.responses[r.ID]; collides {
		return rterr.NewProtocolViolation("response id already seen: "+r.ID, nil)
	}
	t.responses[r.ID] = Response{ID: r.ID, ConversationID: r.ConversationID, Metadata: r.Metadata}
	return nil
}

// handleItemDoneLike asserts the server's view of the item still matches
// what the engine has recorded, modulo status and arguments (arguments may
// finalize incrementally for function calls).
func (t *Tracker) handleItemDoneLike(p pipeline.ItemPayload) error {
	incoming := itemPayloadToItem(p)
	existing, ok := t.items[incoming.ID]
	if !ok {
		t.items[incoming.ID] = &incoming
		return nil
	}
	a, b := *existing, incoming
	a.Status, b.Status = "", ""
	a.Arguments, b.Arguments = "", ""
	if !a.EqualIgnoringStatus(b) {
		return rterr.NewProtocolViolation("item.done diverges from tracked item: "+incoming.ID, nil)
	}
	t.items[incoming.ID] = &incoming
	t.Group.Touch(incoming.ID, "")
	return nil
}

func (t *Tracker) appendTranscript(itemID string, contentIndex int, delta string) {
	item, ok := t.items[itemID]
	if !ok || contentIndex >= len(item.Content) {
		return
	}
	item.Content[contentIndex].Transcript += delta
	t.Group.Touch(itemID, "")
}

func (t *Tracker) setTranscript(itemID string, contentIndex int, transcript string) {
	item, ok := t.items[itemID]
	if !ok || contentIndex >= len(item.Content) {
		return
	}
	item.Content[contentIndex].Transcript = transcript
	t.Group.Touch(itemID, "")
}

func (t *Tracker) appendText(itemID string, contentIndex int, delta string) {
	item, ok := t.items[itemID]
	if !ok || contentIndex >= len(item.Content) {
		return
	}
	item.Content[contentIndex].Text += delta
	t.Group.Touch(itemID, "")
}

// accumulateAudioBytes decodes the base64 delta (sharing the decode with
// any other middleware that touches this same event, via
// pipeline.CachedDecodeAudioDelta) and adds its length to the cell's
// running audio_total_bytes counter; a missing cell means the item was
// already interrupted and trashed, which is a silent drop, not an error.
func (t *Tracker) accumulateAudioBytes(meta *pipeline.Metadata, itemID string, deltaB64 string) {
	cell := t.Group.GetCellFromID(itemID)
	if cell == nil {
		return
	}
	raw, err := pipeline.CachedDecodeAudioDelta(meta, deltaB64)
	if err != nil {
		return
	}
	cell.AudioTotalBytes += len(raw)
}

func (t *Tracker) handleContentPartAdded(e pipeline.ResponseContentPartAddedEvent) error {
	item, ok := t.items[e.ItemID]
	if !ok {
		return rterr.NewProtocolViolation("content_part.added for unknown item: "+e.ItemID, nil)
	}
	if len(item.Content) != e.ContentIndex {
		return rterr.NewProtocolViolation("content_part.added index out of sequence for item: "+e.ItemID, nil)
	}
	cell := t.Group.GetCellFromID(e.ItemID)
	if cell != nil && cell.ResponseID != "" && cell.ResponseID != e.ResponseID {
		return rterr.NewProtocolViolation("content_part.added response id mismatch for item: "+e.ItemID, nil)
	}
	audio, _ := base64.StdEncoding.DecodeString(e.Part.AudioB64)
	item.Content = append(item.Content, ContentPart{
		Type: e.Part.Type, Text: e.Part.Text, Audio: audio, Transcript: e.Part.Transcript,
	})
	t.Group.Touch(e.ItemID, "")
	return nil
}

func (t *Tracker) assertContentPartPresent(itemID string, contentIndex int) error {
	item, ok := t.items[itemID]
	if !ok || contentIndex >= len(item.Content) {
		return rterr.NewProtocolViolation("content_part.done for absent content part: "+itemID, nil)
	}
	return nil
}

func (t *Tracker) handleTruncated(e pipeline.ConversationItemTruncatedEvent) {
	cell := t.Group.GetCellFromID(e.ItemID)
	if cell == nil || cell.AudioTruncate != nil {
		return
	}
	cell.AudioTruncate = &AudioTruncate{ContentIndex: e.ContentIndex, ElapsedMs: e.AudioEndMs}
	t.Group.Touch(e.ItemID, "")
}

// Item returns the tracked item for id, or nil if unknown.
func (t *Tracker) Item(id string) *Item {
	return t.items[id]
}

func (t *Tracker) Response(id string) (Response, bool) {
	r, ok := t.responses[id]
	return r, ok
}
