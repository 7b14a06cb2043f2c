package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Generator is the text-generation collaborator consumed by the
// planner, deep-dive expander, correlation analyzer and narrative
// synthesizer. Implementations may fail or return malformed text;
// callers validate the output and fall back to their documented
// defaults.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeminiGenerator implements Generator on top of Google's Gemini
// models through langchaingo.
type GeminiGenerator struct {
	model   llms.Model
	timeout time.Duration
}

// NewGeminiGenerator creates a Gemini-backed generator. The model name
// matches the discovery model used for mission brainstorming.
func NewGeminiGenerator(apiKey, model string, timeout time.Duration) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("Connected to Gemini (model: %s)", model)

	return &GeminiGenerator{model: client, timeout: timeout}, nil
}

// Generate sends a single prompt and returns the raw completion text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return out, nil
}
