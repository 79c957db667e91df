package chatsession

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func persisted(pairs ...string) []Message {
	out := make([]Message, 0, len(pairs))
	for i, text := range pairs {
		role := RoleHuman
		if i%2 == 1 {
			role = RoleAI
		}
		out = append(out, Message{ID: string(rune('1' + i)), Role: role, Text: text})
	}
	return out
}

func TestReduce_SubmitIsOptimistic(t *testing.T) {
	s := Reduce(State{Input: "What is the refund policy?"}, Submitted{Question: "What is the refund policy?", At: t0})

	assert.Equal(t, StatusAwaitingReply, s.Status)
	assert.Empty(t, s.Input)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, Message{Role: RoleHuman, Text: "What is the refund policy?", CreatedAt: t0}, s.Messages[0])
	assert.Equal(t, RolePlaceholder, s.Messages[1].Role)
	assert.Equal(t, "Thinking...", s.Messages[1].Text)
	assert.True(t, s.Pending())
}

func TestReduce_SecondSubmitWhileAwaitingIsIgnored(t *testing.T) {
	s := Reduce(State{}, Submitted{Question: "one", At: t0})
	again := Reduce(s, Submitted{Question: "two", At: t0})
	assert.Equal(t, s, again)
}

func TestReduce_EmptySubmitIsIgnored(t *testing.T) {
	s := State{Input: "draft"}
	assert.Equal(t, s, Reduce(s, Submitted{Question: ""}))
}

func TestReduce_SnapshotWithoutAnswerLeavesPendingStateUnchanged(t *testing.T) {
	start := State{Messages: persisted("What is the refund policy?", "Within 30 days.")}
	s := Reduce(start, Submitted{Question: "And shipping?", At: t0})

	// The server has stored the new question but not the answer yet.
	stale := append(persisted("What is the refund policy?", "Within 30 days."),
		Message{ID: "3", Role: RoleHuman, Text: "And shipping?"})
	got := Reduce(s, SnapshotReceived{Messages: stale})
	assert.Equal(t, s, got)

	// An older, shorter snapshot is ignored too.
	got = Reduce(s, SnapshotReceived{Messages: persisted("What is the refund policy?", "Within 30 days.")})
	assert.Equal(t, s, got)
}

func TestReduce_AnySnapshotIsIgnoredWhilePending(t *testing.T) {
	s := Reduce(State{}, Submitted{Question: "What is the refund policy?", At: t0})

	// Older history that arrives after a fast submit, or a conversation
	// answered from another client.
	older := persisted("older q", "older a")
	got := Reduce(s, SnapshotReceived{Messages: older})
	assert.Equal(t, s, got)
	assert.Equal(t, StatusAwaitingReply, got.Status)
	assert.True(t, got.Pending())

	// Still guarded against a duplicate submit while the first ask is in flight.
	assert.Equal(t, got, Reduce(got, Submitted{Question: "dup", At: t0}))

	// Even a snapshot that already holds the answer waits for the reply.
	answered := persisted("What is the refund policy?", "Within 30 days.")
	assert.Equal(t, s, Reduce(s, SnapshotReceived{Messages: answered}))

	replied := Reduce(got, ReplySucceeded{Answer: "Within 30 days.", At: t0})
	assert.Equal(t, StatusIdle, replied.Status)
	reconciled := Reduce(replied, SnapshotReceived{Messages: answered})
	assert.Equal(t, answered, reconciled.Messages)
}

func TestReduce_SnapshotReplacesWholesaleWhenIdle(t *testing.T) {
	s := State{Messages: []Message{{Role: RoleHuman, Text: "local only"}}}
	snap := persisted("a", "b", "c", "d")
	got := Reduce(s, SnapshotReceived{Messages: snap})
	assert.Equal(t, snap, got.Messages)
	assert.Equal(t, StatusIdle, got.Status)

	snap[0].Text = "mutated"
	assert.Equal(t, "a", got.Messages[0].Text, "state must not alias the snapshot")
}

func TestReduce_ReplySucceeded(t *testing.T) {
	s := Reduce(State{}, Submitted{Question: "refund?", At: t0})
	got := Reduce(s, ReplySucceeded{Answer: "Within 30 days.", At: t0.Add(time.Second)})

	assert.Equal(t, StatusIdle, got.Status)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleAI, got.Messages[1].Role)
	assert.Equal(t, "Within 30 days.", got.Messages[1].Text)
	assert.Empty(t, got.Messages[1].ID)

	assert.Equal(t, RolePlaceholder, s.Messages[1].Role, "the previous state is not mutated")
}

func TestReduce_ReplyFailed(t *testing.T) {
	s := Reduce(State{}, Submitted{Question: "refund?", At: t0})
	got := Reduce(s, ReplyFailed{Err: errors.New("upstream failure"), At: t0})

	assert.Equal(t, StatusError, got.Status)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleAI, got.Messages[1].Role)
	assert.Equal(t, "whoops... upstream failure", got.Messages[1].Text)
	assert.False(t, got.Pending())

	// A retry is allowed from the error state.
	retry := Reduce(got, Submitted{Question: "refund?", At: t0})
	assert.Equal(t, StatusAwaitingReply, retry.Status)
	assert.Len(t, retry.Messages, 4)

	// The orphaned question comes back from the server without the error line.
	snap := persisted("refund?")
	assert.Equal(t, snap, Reduce(got, SnapshotReceived{Messages: snap}).Messages)
}

func TestReduce_InputChanged(t *testing.T) {
	got := Reduce(State{}, InputChanged{Text: "hel"})
	assert.Equal(t, "hel", got.Input)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "awaiting_reply", StatusAwaitingReply.String())
	assert.Equal(t, "error", StatusError.String())
}
