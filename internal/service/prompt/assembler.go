package prompt

import (
	"errors"

	"github.com/driroane/llamachat/internal/model/chat"
)

// ErrContextOverflow reports that the newest user message alone does
// not fit the context budget, so no useful prompt can be assembled.
var ErrContextOverflow = errors.New("message exceeds the context budget")

// Limits bounds the assembled prompt. All values are in estimated
// tokens.
type Limits struct {
	// MaxContextWindow is the backend's total context size.
	MaxContextWindow int
	// SystemReserve is held back for the system message.
	SystemReserve int
	// ResponseReserve is held back for the generated reply.
	ResponseReserve int
	// MinTokens and MaxTokens clamp the per-request completion budget.
	MinTokens int
	MaxTokens int
}

// Available is the token budget left for history plus the new user
// message after the reserves are taken out.
func (l Limits) Available() int {
	available := l.MaxContextWindow - l.SystemReserve - l.ResponseReserve
	if available < 0 {
		return 0
	}
	return available
}

// ClampMaxTokens bounds a requested completion budget to the
// configured range. A non-positive request falls back to MaxTokens.
func (l Limits) ClampMaxTokens(requested int) int {
	switch {
	case requested <= 0:
		return l.MaxTokens
	case requested < l.MinTokens:
		return l.MinTokens
	case requested > l.MaxTokens:
		return l.MaxTokens
	default:
		return requested
	}
}

// Assembler turns a transcript snapshot plus the new user message into
// a backend request. Build performs no I/O and is deterministic for a
// given input, so it can be unit-tested in isolation.
type Assembler struct {
	systemPrompt string
	limits       Limits
	temperature  float64
	topP         float64
}

func NewAssembler(systemPrompt string, limits Limits, temperature, topP float64) *Assembler {
	return &Assembler{
		systemPrompt: systemPrompt,
		limits:       limits,
		temperature:  temperature,
		topP:         topP,
	}
}

// Build assembles the message list for one generation call. History is
// admitted newest-first until the budget is spent; whole turns are
// dropped from the oldest end, never truncated mid-turn. The newest
// user message is always present, or ErrContextOverflow is returned
// when it alone cannot fit.
func (a *Assembler) Build(snapshot []chat.Turn, userText string, maxTokens int) (chat.GenerationRequest, error) {
	available := a.limits.Available()
	userTokens := EstimateTokens(userText)
	if userTokens > available {
		return chat.GenerationRequest{}, ErrContextOverflow
	}

	historyBudget := available - userTokens

	// Walk the transcript newest to oldest; the first turn that does
	// not fit ends the walk, dropping it and everything older.
	keepFrom := len(snapshot)
	used := 0
	for i := len(snapshot) - 1; i >= 0; i-- {
		turnTokens := EstimateTokens(snapshot[i].Text)
		if used+turnTokens > historyBudget {
			break
		}
		used += turnTokens
		keepFrom = i
	}

	messages := make([]chat.PromptMessage, 0, len(snapshot)-keepFrom+2)
	if a.systemPrompt != "" {
		messages = append(messages, chat.PromptMessage{Role: chat.RoleSystem, Content: a.systemPrompt})
	}
	for _, turn := range snapshot[keepFrom:] {
		switch turn.Role {
		case chat.RoleUser, chat.RoleAssistant:
			messages = append(messages, chat.PromptMessage{Role: turn.Role, Content: turn.Text})
		}
	}
	messages = append(messages, chat.PromptMessage{Role: chat.RoleUser, Content: userText})

	return chat.GenerationRequest{
		Messages:    messages,
		MaxTokens:   a.limits.ClampMaxTokens(maxTokens),
		Temperature: a.temperature,
		TopP:        a.topP,
	}, nil
}
