package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/davidahmann/foundry/internal/verdict"
)

// Gemini implements verdict.Engine against the Gemini API. The client
// holds no per-request state; one instance serves the whole process.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, req verdict.Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts)+1)
	parts = append(parts, genai.NewPartFromText(req.Instruction))
	for _, p := range req.Parts {
		parts = append(parts, genai.NewPartFromBytes(p.Data, p.MediaType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty reply from %s", g.model)
	}
	return text, nil
}
