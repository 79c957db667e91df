// Package chatsession is the client half of a document conversation. It
// shows a question and a placeholder reply immediately and reconciles them
// with the authoritative transcript pushed by the server.
package chatsession

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleHuman       Role = "human"
	RoleAI          Role = "ai"
	RolePlaceholder Role = "placeholder"
)

const (
	placeholderText = "Thinking..."
	failurePrefix   = "whoops... "
)

// Message is a transcript entry as the client holds it. Optimistic
// entries have no ID until a snapshot replaces them.
type Message struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time
}

type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingReply
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingReply:
		return "awaiting_reply"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type State struct {
	Status   Status
	Messages []Message
	Input    string
}

// Pending reports whether the newest message is the unanswered placeholder.
func (s State) Pending() bool {
	n := len(s.Messages)
	return n > 0 && s.Messages[n-1].Role == RolePlaceholder
}

type Event interface {
	event()
}

type InputChanged struct {
	Text string
}

type Submitted struct {
	Question string
	At       time.Time
}

type ReplySucceeded struct {
	Answer string
	At     time.Time
}

type ReplyFailed struct {
	Err error
	At  time.Time
}

type SnapshotReceived struct {
	Messages []Message
}

func (InputChanged) event()     {}
func (Submitted) event()        {}
func (ReplySucceeded) event()   {}
func (ReplyFailed) event()      {}
func (SnapshotReceived) event() {}

// Reduce returns the state that follows e. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case InputChanged:
		s.Input = e.Text
		return s

	case Submitted:
		if s.Status == StatusAwaitingReply || e.Question == "" {
			return s
		}
		msgs := make([]Message, 0, len(s.Messages)+2)
		msgs = append(msgs, s.Messages...)
		msgs = append(msgs,
			Message{Role: RoleHuman, Text: e.Question, CreatedAt: e.At},
			Message{Role: RolePlaceholder, Text: placeholderText, CreatedAt: e.At},
		)
		return State{Status: StatusAwaitingReply, Messages: msgs}

	case ReplySucceeded:
		if !s.Pending() {
			return s
		}
		s.Messages = replaceLast(s.Messages, Message{Role: RoleAI, Text: e.Answer, CreatedAt: e.At})
		s.Status = StatusIdle
		return s

	case ReplyFailed:
		if !s.Pending() {
			return s
		}
		text := failurePrefix + "unknown error"
		if e.Err != nil {
			text = failurePrefix + e.Err.Error()
		}
		s.Messages = replaceLast(s.Messages, Message{Role: RoleAI, Text: text, CreatedAt: e.At})
		s.Status = StatusError
		return s

	case SnapshotReceived:
		// The placeholder is resolved only by the reply itself; the next
		// snapshot after it reconciles ids.
		if s.Pending() {
			return s
		}
		msgs := make([]Message, len(e.Messages))
		copy(msgs, e.Messages)
		s.Messages = msgs
		s.Status = StatusIdle
		return s
	}
	return s
}

func replaceLast(msgs []Message, m Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	out[len(out)-1] = m
	return out
}
