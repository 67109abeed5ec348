package forwarder

import (
	"encoding/json"
	"fmt"

	"github.com/owaiken/gateway/internal/settings"
)

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// chatBody is the outbound chat completions request.
type chatBody struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ChatPayload builds the chat completions body, filling temperature and max_tokens defaults.
func ChatPayload(model string, messages []ChatMessage, temperature *float64, maxTokens *int) ([]byte, error) {
	body := chatBody{
		Model:       model,
		Messages:    messages,
		Temperature: settings.DefaultChatTemperature,
		MaxTokens:   settings.DefaultChatMaxTokens,
	}
	if temperature != nil {
		body.Temperature = *temperature
	}
	if maxTokens != nil && *maxTokens > 0 {
		body.MaxTokens = *maxTokens
	}
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return nil, fmt.Errorf("forwarder: marshal chat payload: %w", errMarshal)
	}
	return payload, nil
}
