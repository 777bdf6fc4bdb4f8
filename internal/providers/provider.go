// Package providers talks to chat-completion backends and turns the AI
// operations of the catalog into completion requests.
package providers

import (
	"context"
	"net/http"
)

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a normalized chat-completion request
type ChatRequest struct {
	Model     string
	MaxTokens int
	Messages  []Message
}

// ChatResponse is a normalized chat-completion response
type ChatResponse struct {
	Content     string // first choice, empty when the provider returned none
	Choices     int
	TotalTokens int
}

// Provider is implemented by each chat-completion backend.
type Provider interface {
	// Type returns the provider type (openai, ...)
	Type() string

	// Chat sends a chat completion request. Non-2xx responses are returned
	// as *utils.StatusError.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Close releases idle connections
	Close() error
}

// Authenticator applies credentials to an outgoing request
type Authenticator interface {
	Apply(req *http.Request)
}

// HeaderAuth sets a static header, e.g. "Authorization: Bearer <key>"
type HeaderAuth struct {
	Header string
	Prefix string
	Value  string
}

// NewBearerAuth returns an Authenticator for bearer API keys
func NewBearerAuth(apiKey string) *HeaderAuth {
	return &HeaderAuth{Header: "Authorization", Prefix: "Bearer ", Value: apiKey}
}

// Apply sets the header on req
func (a *HeaderAuth) Apply(req *http.Request) {
	req.Header.Set(a.Header, a.Prefix+a.Value)
}
