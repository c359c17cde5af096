// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package conversation reconstructs server-side conversation state from the
// event stream: the main sequence, out-of-band responses, and the
// speculative-insert reconciliation ("Impatience") that lets local,
// not-yet-confirmed items coexist with the authoritative server ordering.
package conversation

import (
	"github.com/rapidaai/realtime-client/internal/rterr"
)

// Root is the sentinel previous-item-id meaning "insert at the head of the
// main sequence." The wire spells this as an empty string; IsRoot accepts
// both the empty string and the sentinel.
const Root = "__root__"

func IsRoot(previousItemID string) bool {
	return previousItemID == "" || previousItemID == Root
}

// AudioTruncate records where an interrupted item's audio was cut: the
// content part index and the elapsed milliseconds of playback at the
// moment of interruption.
type AudioTruncate struct {
	ContentIndex int
	ElapsedMs    int
}

// Cell is one conversation turn as tracked by the group: an item id, the
// response that produced it (if any), truncation info once interrupted, the
// running total of audio bytes streamed for it, and one TouchedByEvents
// entry per event that has touched it. A client conversation.item.create
// records its event_id; server events are recorded as "" because their
// event_id is not decoded.
type Cell struct {
	ItemID          string
	ResponseID      string // empty if not response-originated
	AudioTruncate   *AudioTruncate
	AudioTotalBytes int
	TouchedByEvents []string
}

// Group is the reconstructed conversation: an ordered main sequence with
// O(1) membership testing, an out-of-band map for responses that never join
// the main sequence, and a trash bin for deleted cells.
type Group struct {
	main       []*Cell
	mainSet    map[string]bool
	oob        map[string]*Cell
	trashed    []*Cell
	byID       map[string]*Cell
	mainConvID string
}

func NewGroup() *Group {
	return &Group{
		mainSet: make(map[string]bool),
		oob:     make(map[string]*Cell),
		byID:    make(map[string]*Cell),
	}
}

// MainConversationID returns the id this group has pinned its main sequence
// to, or "" if not yet set.
func (g *Group) MainConversationID() string { return g.mainConvID }

// AssertMainConversationID sets the main conversation id on first
// observation and asserts every subsequent observation agrees with it.
func (g *Group) AssertMainConversationID(id string) error {
	if g.mainConvID == "" {
		g.mainConvID = id
		return nil
	}
	if g.mainConvID != id {
		return rterr.NewProtocolViolation("main_conversation_id changed mid-session", nil)
	}
	return nil
}

// Seek returns the index of itemID within the main sequence. It is an error
// for the item to be absent or to appear more than once.
func (g *Group) Seek(itemID string) (int, error) {
	idx := -1
	for i, c := range g.main {
		if c.ItemID == itemID {
			if idx != -1 {
				return 0, rterr.NewProtocolViolation("item appears more than once in main conversation", nil)
			}
			idx = i
		}
	}
	if idx == -1 {
		return 0, rterr.NewProtocolViolation("item not found in main conversation: "+itemID, nil)
	}
	return idx, nil
}

func (g *Group) GetCellFromID(itemID string) *Cell {
	return g.byID[itemID]
}

// IndexAfter returns the insertion index implied by previousItemID: 0 if
// it's the root sentinel, else one past the seek index.
func (g *Group) IndexAfter(previousItemID string) (int, error) {
	if IsRoot(previousItemID) {
		return 0, nil
	}
	idx, err := g.Seek(previousItemID)
	if err != nil {
		return 0, err
	}
	return idx + 1, nil
}

// InsertAfter inserts cell into the main sequence immediately after
// previousItemID (or at the head, for the root sentinel). The cell must not
// already be out-of-band or already present in the main sequence.
func (g *Group) InsertAfter(cell *Cell, previousItemID string) error {
	if _, ok := g.oob[cell.ItemID]; ok {
		return rterr.NewProtocolViolation("cell already out-of-band: "+cell.ItemID, nil)
	}
	if g.mainSet[cell.ItemID] {
		return rterr.NewProtocolViolation("cell already in main conversation: "+cell.ItemID, nil)
	}
	idx, err := g.IndexAfter(previousItemID)
	if err != nil {
		return err
	}
	g.main = append(g.main, nil)
	copy(g.main[idx+1:], g.main[idx:])
	g.main[idx] = cell
	g.mainSet[cell.ItemID] = true
	g.byID[cell.ItemID] = cell
	return nil
}

// Move relocates an already-present cell to immediately after
// previousItemID, preserving its identity.
func (g *Group) Move(itemID string, previousItemID string) error {
	idx, err := g.Seek(itemID)
	if err != nil {
		return err
	}
	cell := g.main[idx]
	g.main = append(g.main[:idx], g.main[idx+1:]...)
	delete(g.mainSet, itemID)

	newIdx, err := g.IndexAfter(previousItemID)
	if err != nil {
		g.main = append(g.main, nil)
		copy(g.main[idx+1:], g.main[idx:])
		g.main[idx] = cell
		g.mainSet[itemID] = true
		return err
	}
	g.main = append(g.main, nil)
	copy(g.main[newIdx+1:], g.main[newIdx:])
	g.main[newIdx] = cell
	g.mainSet[itemID] = true
	return nil
}

// PreviousItemIDOf returns the previous_item_id for itemID within the main
// sequence, Root if it's at the head.
func (g *Group) PreviousItemIDOf(itemID string) (string, error) {
	idx, err := g.Seek(itemID)
	if err != nil {
		return "", err
	}
	if idx == 0 {
		return Root, nil
	}
	return g.main[idx-1].ItemID, nil
}

// Trash removes itemID from the main sequence and appends its cell to the
// trash bin.
func (g *Group) Trash(itemID string) error {
	idx, err := g.Seek(itemID)
	if err != nil {
		return err
	}
	cell := g.main[idx]
	g.main = append(g.main[:idx], g.main[idx+1:]...)
	delete(g.mainSet, itemID)
	delete(g.byID, itemID)
	g.trashed = append(g.trashed, cell)
	return nil
}

// Touch appends eventID to the cell's touch history.
func (g *Group) Touch(itemID string, eventID string) {
	if cell, ok := g.byID[itemID]; ok {
		cell.TouchedByEvents = append(cell.TouchedByEvents, eventID)
	}
}

// LastItemID returns the id of the last cell in the main sequence, or Root
// if the sequence is empty.
func (g *Group) LastItemID() string {
	if len(g.main) == 0 {
		return Root
	}
	return g.main[len(g.main)-1].ItemID
}

func (g *Group) MainConversationContains(itemID string) bool {
	return g.mainSet[itemID]
}

// SafeAddOOB adds cell to the out-of-band map, asserting it is not already
// present in the main sequence or in the OOB map.
func (g *Group) SafeAddOOB(cell *Cell) error {
	if g.mainSet[cell.ItemID] {
		return rterr.NewProtocolViolation("cell already in main conversation: "+cell.ItemID, nil)
	}
	if _, ok := g.oob[cell.ItemID]; ok {
		return rterr.NewProtocolViolation("cell already out-of-band: "+cell.ItemID, nil)
	}
	g.oob[cell.ItemID] = cell
	g.byID[cell.ItemID] = cell
	return nil
}

// MainSequence returns a snapshot copy of the main sequence's item ids, in
// order.
func (g *Group) MainSequence() []string {
	ids := make([]string, len(g.main))
	for i, c := range g.main {
		ids[i] = c.ItemID
	}
	return ids
}
