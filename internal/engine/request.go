package engine

import (
	"encoding/json"
	"net/http"
)

// ChatMessage is one turn in a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the wire payload for the chat-completions endpoint.
type ChatRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Stream         bool          `json:"stream"`
	EnableThinking bool          `json:"enable_thinking,omitempty"`
}

// requestBuilder assembles chat-completion requests for one configured
// endpoint. All per-call variation comes in through the messages and the
// stream flag.
type requestBuilder struct {
	endpoint       string
	apiKey         string
	maxTokens      int
	enableThinking bool
}

func newRequestBuilder(apiURL, apiKey string, maxTokens int, enableThinking bool) *requestBuilder {
	return &requestBuilder{
		endpoint:       apiURL + "/chat/completions",
		apiKey:         apiKey,
		maxTokens:      maxTokens,
		enableThinking: enableThinking,
	}
}

func (b *requestBuilder) body(model string, messages []ChatMessage, stream bool) ([]byte, error) {
	return json.Marshal(&ChatRequest{
		Model:          model,
		Messages:       messages,
		MaxTokens:      b.maxTokens,
		Stream:         stream,
		EnableThinking: b.enableThinking,
	})
}

func (b *requestBuilder) header(stream bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+b.apiKey)
	if stream {
		h.Set("Accept", "text/event-stream")
		h.Set("Connection", "keep-alive")
	} else {
		h.Set("Accept", "application/json")
	}
	return h
}

// usagePayload mirrors the upstream usage object. Every field is optional;
// a missing object falls back to estimation.
type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usagePayload) toTokenUsage() TokenUsage {
	if u == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// chatCompletion is the non-streaming response envelope. The decode treats
// every field as optional so a malformed body never raises past this
// boundary.
type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

// streamChunk is one SSE data event of a streaming response.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}
