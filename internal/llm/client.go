package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/time/rate"
)

// Completer sends one prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gemini is the production Completer backed by langchaingo's Google AI
// model. All calls share one rate limiter.
type Gemini struct {
	model   llms.Model
	limiter *rate.Limiter
}

func NewGemini(ctx context.Context, apiKey, model string, reqPerSec float64) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("llm api key is empty")
	}
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{model: m, limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1)}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	return out, nil
}
