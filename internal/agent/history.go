package agent

import (
	"conduit/internal/ports"
	"conduit/internal/tokens"
)

const defaultHistoryBudget = 8000

// history keeps past conversation turns under a token budget. Oldest
// turns go first; the newest turn is always kept even when it alone
// exceeds the budget.
type history struct {
	budget int
	turns  []ports.Message
	total  int
}

func newHistory(budget int) *history {
	if budget <= 0 {
		budget = defaultHistoryBudget
	}
	return &history{budget: budget}
}

func (h *history) Add(role, content string) {
	h.turns = append(h.turns, ports.Message{Role: role, Content: content})
	h.total += tokens.Count(content)
	for h.total > h.budget && len(h.turns) > 1 {
		h.total -= tokens.Count(h.turns[0].Content)
		h.turns = h.turns[1:]
	}
}

func (h *history) Messages() []ports.Message {
	out := make([]ports.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *history) Len() int { return len(h.turns) }

func (h *history) Clear() {
	h.turns = nil
	h.total = 0
}
