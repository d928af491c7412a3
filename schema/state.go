package schema

// MessageState is the conversation state used by the prebuilt agents.
type MessageState struct {
	Messages []Message `json:"messages"`
}

// NewMessageState creates a state holding msgs.
func NewMessageState(msgs ...Message) MessageState {
	return MessageState{Messages: msgs}
}

// Merge appends other's messages onto s. See AddMessages for the rules.
func (s MessageState) Merge(other MessageState) MessageState {
	return MessageState{Messages: AddMessages(s.Messages, other.Messages)}
}

// Last returns the final message, if any.
func (s MessageState) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAI returns the most recent AI message, if any.
func (s MessageState) LastAI() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAI {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// AddMessages merges right into left without modifying either slice.
//
//   - a remove marker deletes the message with its ID, or every message
//     when the ID is RemoveAll;
//   - a message whose non-empty ID already exists replaces it in place;
//   - anything else is appended.
func AddMessages(left, right []Message) []Message {
	out := make([]Message, len(left), len(left)+len(right))
	copy(out, left)

	for _, m := range right {
		if m.Role == RoleRemove {
			if m.ID == RemoveAll {
				out = out[:0]
				continue
			}
			out = removeByID(out, m.ID)
			continue
		}
		if m.ID != "" {
			if i := indexByID(out, m.ID); i >= 0 {
				out[i] = m
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func indexByID(msgs []Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func removeByID(msgs []Message, id string) []Message {
	i := indexByID(msgs, id)
	if i < 0 {
		return msgs
	}
	return append(msgs[:i], msgs[i+1:]...)
}
