package llm

import "context"

// Provider is the language-model capability used by every pipeline step.
// Text goes in, text (or schema-conforming JSON text) comes out.
type Provider interface {
	// Generate sends a prompt to the model and returns its output.
	// When the request carries a Schema, the provider asks for native
	// structured output and validates the result before returning it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is the system instruction. Sets the model's role and constraints.
	System string

	// Messages is the conversation. Pipeline steps send a single user turn.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil, Response.Text is whatever the model produced.
	Schema *Schema

	// JSON asks for a JSON-only response without a schema
	// (Gemini "application/json", OpenAI json_object).
	JSON bool

	// Sampling parameters. Zero values leave the vendor default in place.
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}

// Sampling is a named set of generation parameters. Steps keep one each so
// that the strict interpretation call and the loose roleplay call never
// share configuration.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	JSON        bool
}

// Apply copies the sampling parameters onto req.
func (s Sampling) Apply(req Request) Request {
	req.Temperature = s.Temperature
	req.TopP = s.TopP
	req.TopK = s.TopK
	req.MaxTokens = s.MaxTokens
	req.JSON = s.JSON
	return req
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name
	// for OpenAI, cache key for validation). Kebab-case.
	Name string

	// Description is sent to the model to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Text is the generated output. With a Schema it is validated JSON.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
