package diagnosis

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator is the generative model backend.
type Generator interface {
	ModelLister
	Generate(ctx context.Context, model, prompt string, image *ImagePart) (string, error)
}

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if m == nil {
			continue
		}
		out = append(out, ModelInfo{Name: m.Name, SupportedActions: m.SupportedActions})
	}
	return out, nil
}

func (g *GeminiClient) Generate(ctx context.Context, model, prompt string, image *ImagePart) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}
	return resp.Text(), nil
}
