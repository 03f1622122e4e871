package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider speaks the Gemini API through the official genai SDK.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) ChatStream(ctx context.Context, msgs []Message, cfg GenerateConfig, fn ChunkFunc) error {
	genCfg, contents := buildGeminiRequest(msgs, cfg)

	for resp, err := range p.client.Models.GenerateContentStream(ctx, cfg.Model, contents, genCfg) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := fn(text); err != nil {
			return err
		}
	}
	return nil
}

// Embed is unsupported; embeddings always come from a sibling provider.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbeddingUnsupported
}

// buildGeminiRequest maps the provider-neutral transcript onto the genai
// request shape. All system messages are collected into one SystemInstruction;
// Gemini has no per-message system role, and dropping any of them would lose
// the persona framing or the debate instruction.
func buildGeminiRequest(msgs []Message, cfg GenerateConfig) (*genai.GenerateContentConfig, []*genai.Content) {
	genCfg := &genai.GenerateContentConfig{}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	var sysParts []*genai.Part
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			sysParts = append(sysParts, &genai.Part{Text: m.Content})
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: toGeminiParts(m),
			})
		}
	}
	if len(sysParts) > 0 {
		genCfg.SystemInstruction = &genai.Content{Parts: sysParts}
	}
	return genCfg, contents
}

func toGeminiParts(m Message) []*genai.Part {
	parts := make([]*genai.Part, 0, len(m.Images)+1)
	if m.Content != "" {
		parts = append(parts, &genai.Part{Text: m.Content})
	}
	for _, img := range m.Images {
		if img.Base64 == "" {
			// URL-only images are referenced inline; the SDK needs raw bytes.
			if img.URL != "" {
				parts = append(parts, &genai.Part{Text: fmt.Sprintf("[Image: %s]", img.URL)})
			}
			continue
		}
		data, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			continue
		}
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: mime, Data: data},
		})
	}
	if len(parts) == 0 {
		parts = append(parts, &genai.Part{Text: ""})
	}
	return parts
}
