// Package llm provides the chat completion client.
package llm

import "context"

// Client is the interface the conversation service talks to.
type Client interface {
	// Chat sends a chat completion request and returns the first choice.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
