// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package conversation

// Role tags an Item by kind. Items decoded from the wire carry the wire's
// item.role string unchanged (e.g. "user", "assistant"); the wire's
// item.type is not read, so decoded items do not hold the constants below.
type Role string

const (
	RoleUserMessage       Role = "user_message"
	RoleAssistantMessage  Role = "assistant_message"
	RoleFunctionCall      Role = "function_call"
	RoleFunctionCallOutput Role = "function_call_output"
)

// ContentPart is one element of a message item's content list: text,
// opaque audio bytes, and/or a transcript, any of which may be absent or
// filled in incrementally by streaming deltas.
type ContentPart struct {
	Type       string
	Text       string
	Audio      []byte
	Transcript string
}

// Item is a conversation turn as exchanged on the wire. Message items carry
// an ordered content list; function-call items carry a name and a
// JSON-serialized arguments string instead.
type Item struct {
	ID      string
	Role    Role
	Status  string
	Content []ContentPart

	// Function-call fields; empty for message items.
	CallID    string
	Name      string
	Arguments string
	Output    string // function_call_output only
}

// EqualIgnoringStatus reports whether two items are equal in every field
// except Status, used when reconciling a locally speculative or
// response-pending item against the server's confirmed version.
func (it Item) EqualIgnoringStatus(other Item) bool {
	if it.ID != other.ID || it.Role != other.Role {
		return false
	}
	if it.CallID != other.CallID || it.Name != other.Name ||
		it.Arguments != other.Arguments || it.Output != other.Output {
		return false
	}
	if len(it.Content) != len(other.Content) {
		return false
	}
	for i := range it.Content {
		a, b := it.Content[i], other.Content[i]
		if a.Type != b.Type || a.Text != b.Text || a.Transcript != b.Transcript {
			return false
		}
		if string(a.Audio) != string(b.Audio) {
			return false
		}
	}
	return true
}

// Response is the opaque server response record the engine tracks by id,
// keeping only the fields it reads.
type Response struct {
	ID             string
	ConversationID string // empty means not bound to the main conversation
	Metadata       map[string]interface{}
}
