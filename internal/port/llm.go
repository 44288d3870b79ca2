package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate generates text based on the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithSystem generates text with a system prompt.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// AnswerGenerator synthesizes an answer to a query from supporting snippets.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, chunkTexts []string) (string, error)
}
