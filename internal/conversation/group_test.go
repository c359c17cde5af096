// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupInsertAtRootAndAfter(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "B"}, "A"))
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "C"}, ""))

	assert.Equal(t, []string{"C", "A", "B"}, g.MainSequence())
	assert.True(t, g.MainConversationContains("A"))
	assert.True(t, g.MainConversationContains("B"))
	assert.True(t, g.MainConversationContains("C"))
}

func TestGroupInsertAfterRejectsDuplicate(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	err := g.InsertAfter(&Cell{ItemID: "A"}, Root)
	assert.Error(t, err)
}

func TestGroupMoveRelocatesExisting(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "X"}, "A"))
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "B"}, "X"))

	require.NoError(t, g.Move("X", "B"))
	assert.Equal(t, []string{"A", "B", "X"}, g.MainSequence())
}

func TestGroupTrashRemovesFromMain(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "B"}, "A"))

	require.NoError(t, g.Trash("A"))
	assert.False(t, g.MainConversationContains("A"))
	assert.Equal(t, []string{"B"}, g.MainSequence())
}

func TestGroupSafeAddOOBRejectsMainMember(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	err := g.SafeAddOOB(&Cell{ItemID: "A"})
	assert.Error(t, err)
}

func TestGroupSafeAddOOBRejectsDuplicate(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.SafeAddOOB(&Cell{ItemID: "Y"}))
	err := g.SafeAddOOB(&Cell{ItemID: "Y"})
	assert.Error(t, err)
}

func TestGroupMainConversationIDSetOnceAndAsserted(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.AssertMainConversationID("conv-1"))
	require.NoError(t, g.AssertMainConversationID("conv-1"))
	assert.Error(t, g.AssertMainConversationID("conv-2"))
}

func TestGroupLastItemIDIsRootWhenEmpty(t *testing.T) {
	g := NewGroup()
	assert.Equal(t, Root, g.LastItemID())
	require.NoError(t, g.InsertAfter(&Cell{ItemID: "A"}, Root))
	assert.Equal(t, "A", g.LastItemID())
}

func TestGroupSeekRejectsMissingItem(t *testing.T) {
	g := NewGroup()
	_, err := g.Seek("missing")
	assert.Error(t, err)
}

func TestIsRootAcceptsEmptyStringAndSentinel(t *testing.T) {
	assert.True(t, IsRoot(""))
	assert.True(t, IsRoot(Root))
	assert.False(t, IsRoot("item-1"))
}
