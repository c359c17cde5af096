// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-client/internal/pipeline"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

func newTestTracker() *Tracker {
	return NewTracker(commons.NewTestLogger())
}

// TestLocalSpeculativeInsertReconciled mirrors spec scenario 2: a client
// create with no id/previous_item_id is rewritten, then the matching
// conversation.item.added reconciles it into the server-specified position.
func TestLocalSpeculativeInsertReconciled(t *testing.T) {
	tr := newTestTracker()
	require.NoError(t, tr.Group.InsertAfter(&Cell{ItemID: "A"}, Root))
	tr.items["A"] = &Item{ID: "A", Role: RoleUserMessage}
	require.NoError(t, tr.Group.InsertAfter(&Cell{ItemID: "B"}, "A"))
	tr.items["B"] = &Item{ID: "B", Role: RoleUserMessage}

	meta := pipeline.NewMetadata()
	create := pipeline.ConversationItemCreateEvent{
		Item: pipeline.ItemPayload{Role: "user_message"},
	}
	rewritten, err := tr.ClientMiddleware(context.Background(), create, meta)
	require.NoError(t, err)

	rewrittenCreate := rewritten.(pipeline.ConversationItemCreateEvent)
	genID := rewrittenCreate.Item.ID
	assert.NotEmpty(t, genID)
	assert.Equal(t, "B", rewrittenCreate.PreviousItemID)
	assert.Equal(t, []string{"A", "B", genID}, tr.Group.MainSequence())

	added := pipeline.ConversationItemAddedEvent{
		Item:           pipeline.ItemPayload{ID: genID, Role: "user_message"},
		PreviousItemID: "B",
	}
	meta2 := pipeline.NewMetadata()
	_, err = tr.ServerMiddleware(context.Background(), added, meta2)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", genID}, tr.Group.MainSequence())
	assert.True(t, tr.Group.MainConversationContains(genID))
}

// TestOutOfBandResponseItem mirrors spec scenario 3: a response with no
// bound conversation_id places its item straight into the out-of-band map.
func TestOutOfBandResponseItem(t *testing.T) {
	tr := newTestTracker()
	meta := pipeline.NewMetadata()

	created := pipeline.ResponseCreatedEvent{
		Response: pipeline.ResponsePayload{ID: "R1"},
	}
	_, err := tr.ServerMiddleware(context.Background(), created, meta)
	require.NoError(t, err)

	meta2 := pipeline.NewMetadata()
	added := pipeline.ResponseOutputItemAddedEvent{
		ResponseID: "R1",
		Item:       pipeline.ItemPayload{ID: "Y", Role: "assistant_message"},
	}
	_, err = tr.ServerMiddleware(context.Background(), added, meta2)
	require.NoError(t, err)

	assert.False(t, tr.Group.MainConversationContains("Y"))
	cell := tr.Group.GetCellFromID("Y")
	require.NotNil(t, cell)
	assert.Equal(t, "R1", cell.ResponseID)
}

// TestTranscriptDeltaAccumulation mirrors spec scenario 6: successive
// audio-transcript deltas append in order onto the addressed content part.
func TestTranscriptDeltaAccumulation(t *testing.T) {
	tr := newTestTracker()
	tr.items["Z"] = &Item{ID: "Z", Role: RoleAssistantMessage, Content: []ContentPart{{Type: "audio"}}}
	require.NoError(t, tr.Group.InsertAfter(&Cell{ItemID: "Z"}, Root))

	for _, delta := range []string{"He", "llo", "!"} {
		_, err := tr.ServerMiddleware(context.Background(), pipeline.ResponseAudioTranscriptDeltaEvent{
			ItemID: "Z", ContentIndex: 0, Delta: delta,
		}, pipeline.NewMetadata())
		require.NoError(t, err)
	}

	assert.Equal(t, "Hello!", tr.items["Z"].Content[0].Transcript)
}

func TestResponseInBandDanglesUntilItemAdded(t *testing.T) {
	tr := newTestTracker()
	require.NoError(t, tr.Group.AssertMainConversationID("conv-1"))

	_, err := tr.ServerMiddleware(context.Background(), pipeline.ResponseCreatedEvent{
		Response: pipeline.ResponsePayload{ID: "R2", ConversationID: "conv-1"},
	}, pipeline.NewMetadata())
	require.NoError(t, err)

	_, err = tr.ServerMiddleware(context.Background(), pipeline.ResponseOutputItemAddedEvent{
		ResponseID: "R2",
		Item:       pipeline.ItemPayload{ID: "W", Role: "assistant_message"},
	}, pipeline.NewMetadata())
	require.NoError(t, err)

	assert.False(t, tr.Group.MainConversationContains("W"))
	_, isOOB := tr.responses["R2"], false
	_ = isOOB

	_, err = tr.ServerMiddleware(context.Background(), pipeline.ConversationItemAddedEvent{
		Item:           pipeline.ItemPayload{ID: "W", Role: "assistant_message"},
		PreviousItemID: Root,
	}, pipeline.NewMetadata())
	require.NoError(t, err)

	assert.True(t, tr.Group.MainConversationContains("W"))
	cell := tr.Group.GetCellFromID("W")
	require.NotNil(t, cell)
	assert.Equal(t, "R2", cell.ResponseID)
}

func TestResponseCreatedRejectsIDCollision(t *testing.T) {
	tr := newTestTracker()
	_, err := tr.ServerMiddleware(context.Background(), pipeline.ResponseCreatedEvent{
		Response: pipeline.ResponsePayload{ID: "dup"},
	}, pipeline.NewMetadata())
	require.NoError(t, err)

	_, err = tr.ServerMiddleware(context.Background(), pipeline.ResponseCreatedEvent{
		Response: pipeline.ResponsePayload{ID: "dup"},
	}, pipeline.NewMetadata())
	assert.Error(t, err)
}
