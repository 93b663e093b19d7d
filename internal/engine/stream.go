package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

const (
	ssePrefix     = "data: "
	sseDone       = "[DONE]"
	maxStreamLine = 1 << 20
)

// streamResult is the assembled output of one SSE stream.
type streamResult struct {
	Content      string
	Reasoning    string
	FinishReason string
	Usage        TokenUsage
	sawUsage     bool
}

// readStream consumes a text/event-stream body, concatenating delta content
// and reasoning fragments until a [DONE] marker or stream end. Malformed
// chunks are skipped rather than failing the stream; a scanner error (the
// connection dying mid-body) is returned for the caller to classify.
func readStream(ctx context.Context, body io.Reader) (*streamResult, error) {
	var content, reasoning strings.Builder
	res := &streamResult{}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := line[len(ssePrefix):]
		if strings.TrimSpace(data) == sseDone {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			content.WriteString(choice.Delta.Content)
			reasoning.WriteString(choice.Delta.ReasoningContent)
			if choice.FinishReason != "" {
				res.FinishReason = choice.FinishReason
			}
		}
		if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
			res.Usage = chunk.Usage.toTokenUsage()
			res.sawUsage = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	res.Content = content.String()
	res.Reasoning = reasoning.String()
	return res, nil
}

// estimateTokens approximates a completion token count from text length at
// roughly four characters per token. This is a rough heuristic, not a real
// tokenizer count; CJK scripts in particular average fewer characters per
// token than this assumes.
func estimateTokens(text string) int {
	return len([]rune(text)) / 4
}
