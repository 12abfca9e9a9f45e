// Package llm wraps the chat-completion model used to phrase answers. The
// answer layer treats it as an untrusted collaborator: everything it returns
// is validated before reaching a user.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

// DefaultModel is the chat model used for answer phrasing.
const DefaultModel = openai.ChatModelGPT4oMini

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 20 * time.Second

// ModelError wraps a failure from the completion API so callers can tell
// model trouble apart from their own errors.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error: %v", e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Client produces a completion for a prompt. Implementations must honor ctx.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient implements Client over the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient creates a completion client. Empty model and zero timeout
// take the defaults.
func NewOpenAIClient(client *openai.Client, model string, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIClient{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Complete sends prompt as a single user message and returns the model's
// text. Errors come back wrapped in ModelError.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	if err != nil {
		return "", &ModelError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ModelError{Err: fmt.Errorf("completion returned no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}
