package app

import (
	"sort"

	"github.com/cloudwego/eino/schema"

	"docchat/internal/model"
)

// Rough token estimate: four characters per token plus a fixed
// per-message overhead.
const (
	charsPerToken      = 4
	perMessageOverhead = 4
)

// chronological sorts turns oldest first, breaking timestamp ties by id.
func chronological(turns []model.ChatTurn) []model.ChatTurn {
	out := make([]model.ChatTurn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func toSchemaMessages(turns []model.ChatTurn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == model.RoleAI {
			msgs = append(msgs, schema.AssistantMessage(t.Message, nil))
		} else {
			msgs = append(msgs, schema.UserMessage(t.Message))
		}
	}
	return msgs
}

func estimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

func estimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + estimateTokens(string(m.Role)) + estimateTokens(m.Content)
	}
	return total
}

// windowHistory keeps at most maxTurns of the newest messages, then drops
// the oldest until the estimate fits maxTokens. Zero disables a limit.
func windowHistory(msgs []*schema.Message, maxTurns, maxTokens int) []*schema.Message {
	if maxTurns > 0 && len(msgs) > maxTurns {
		msgs = msgs[len(msgs)-maxTurns:]
	}
	if maxTokens <= 0 {
		return msgs
	}
	for len(msgs) > 0 && estimateMessages(msgs) > maxTokens {
		msgs = msgs[1:]
	}
	return msgs
}
