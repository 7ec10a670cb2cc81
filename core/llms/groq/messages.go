package groq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koscakluka/comet-core/core/agent"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

// toMessages turns a conversation context into chat messages: instructions
// with what is remembered, the recent turns and finally the new input.
func toMessages(instructions string, c agent.Context) []message {
	messages := []message{}

	system := strings.TrimSpace(instructions)
	if facts := describeMemory(c.Memory, c.Persistent); facts != "" {
		system = strings.TrimSpace(system + "\n\n" + facts)
	}
	if system != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: system})
	}

	for _, turn := range c.History {
		if turn.Input != "" {
			messages = append(messages, message{Role: messageRoleUser, Content: turn.Input})
		}
		if turn.Response != "" {
			messages = append(messages, message{Role: messageRoleAssistant, Content: turn.Response})
		}
	}

	return append(messages, message{Role: messageRoleUser, Content: c.Input})
}

func describeMemory(session, persistent map[string]any) string {
	var parts []string
	for _, scope := range []struct {
		name    string
		entries map[string]any
	}{
		{"this conversation", session},
		{"this user", persistent},
	} {
		if len(scope.entries) == 0 {
			continue
		}
		encoded, err := json.Marshal(scope.entries)
		if err != nil {
			logger.Warn("failed to encode memory for prompt", "error", err)
			continue
		}
		parts = append(parts, fmt.Sprintf("Remembered about %s: %s", scope.name, encoded))
	}
	return strings.Join(parts, "\n")
}
