package cache

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder encodes text into a fixed-length vector for the semantic
// cache level. Its absence (or failure) degrades the cache to exact and
// template behavior only; it never fails a caller's request.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder for the given API key and
// embedding model name.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Encode returns the embedding vector for the given text.
func (e *OpenAIEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}
