package assistant

import (
	"encoding/json"
	"strings"
)

// Message roles in an agent transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one transcript entry of an agent turn.
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	ToolCalls []json.RawMessage `json:"tool_calls,omitempty"`
}

// ExtractReply returns the agent's final text for a turn. It takes the last
// assistant message that has text, makes no tool calls and does not look
// like raw structured data. Without one, the reply is synthesized from
// toolOutputs, or from the transcript's tool messages when toolOutputs is
// empty.
func (s *Service) ExtractReply(messages []Message, toolOutputs []string) string {
	if reply, ok := AgentReply(messages); ok {
		return reply
	}

	if len(toolOutputs) == 0 {
		for _, m := range messages {
			if m.Role == RoleTool {
				toolOutputs = append(toolOutputs, m.Content)
			}
		}
	}
	s.logger.Warn().Int("messages", len(messages)).Msg("No usable agent reply, using fallback")
	return s.Synthesize(toolOutputs)
}

// AgentReply finds the usable assistant reply in messages, if any.
func AgentReply(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != RoleAssistant || len(m.ToolCalls) > 0 {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" || strings.HasPrefix(content, "[") || strings.HasPrefix(content, "{") {
			continue
		}
		return m.Content, true
	}
	return "", false
}
