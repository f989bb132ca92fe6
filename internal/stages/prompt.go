package stages

import (
	"strings"

	"github.com/deskmind/orchestrator/internal/llm"
	"github.com/deskmind/orchestrator/internal/workflow"
)

const historyWindow = 5

// buildPrompt assembles system persona, a short history window, and the
// current utterance into a chat prompt.
func buildPrompt(system string, s *workflow.State, extra ...string) []llm.Message {
	msgs := []llm.Message{llm.System(system)}
	for _, h := range s.RecentHistory(historyWindow) {
		if h.Role == "assistant" {
			msgs = append(msgs, llm.Assistant(h.Content))
		} else {
			msgs = append(msgs, llm.User(h.Content))
		}
	}

	var sb strings.Builder
	sb.WriteString(s.Utterance)
	for _, block := range extra {
		if strings.TrimSpace(block) == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}
	msgs = append(msgs, llm.User(sb.String()))
	return msgs
}
