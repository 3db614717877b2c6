package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// SchemaError indicates a generation response that does not parse as the
// structured shape the caller required. It is a hard error: the unit that
// hits it fails, and with it the whole run.
type SchemaError struct {
	Snippet string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response violates expected schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// GenerateText issues a single-turn generation call and returns the
// concatenated text content. The call is bounded by the client timeout;
// exceeding it surfaces as an error, never as a silent continuation.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.inner.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("generation call: %w", err)
	}

	usage := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	c.tracker.Add(usage.InputTokens, usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	if text.Len() == 0 {
		return "", usage, fmt.Errorf("generation call: empty response")
	}

	return text.String(), usage, nil
}

// GenerateJSON issues a single-turn generation call and decodes the response
// into out. The model is instructed to return only JSON, but responses are
// still fished out of surrounding prose before decoding. A decode failure is
// returned as a *SchemaError.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, out any) (Usage, error) {
	text, usage, err := c.GenerateText(ctx, system, prompt)
	if err != nil {
		return usage, err
	}

	if err := DecodeJSON(text, out); err != nil {
		return usage, err
	}
	return usage, nil
}

// DecodeJSON extracts the outermost JSON object from a response and decodes
// it strictly into out. Unknown fields are rejected so shape drift in model
// output fails loudly instead of vanishing into zero values.
func DecodeJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return &SchemaError{
			Snippet: snippet(text),
			Err:     fmt.Errorf("no JSON object found in response"),
		}
	}

	raw := text[start : end+1]
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &SchemaError{
			Snippet: snippet(raw),
			Err:     err,
		}
	}
	return nil
}

// snippet trims a response body for error reporting.
func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
