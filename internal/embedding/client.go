package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// Client wraps the OpenAI client used for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates the OpenAI client for embedding generation. The API key
// is read from OPENAI_API_KEY.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment.
	client := openai.NewClient()

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client so the answer layer can share
// one configured client for chat completions.
func (c *Client) Client() *openai.Client {
	return c.client
}
