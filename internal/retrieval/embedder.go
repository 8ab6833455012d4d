package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	gocache "github.com/patrickmn/go-cache"
)

const (
	EmbeddingModelLarge = "text-embedding-3-large"
	EmbeddingModelSmall = "text-embedding-3-small"

	DefaultEmbeddingModel = EmbeddingModelLarge
)

// EmbeddingModelInfo describes a supported embedding model. Dimensions are
// requested explicitly on every call so stored vectors stay comparable even
// if the provider changes a model's native width.
type EmbeddingModelInfo struct {
	Dimensions int
	MaxTokens  int
}

var EmbeddingModels = map[string]EmbeddingModelInfo{
	EmbeddingModelLarge: {Dimensions: 1536, MaxTokens: 8192},
	EmbeddingModelSmall: {Dimensions: 512, MaxTokens: 8192},
}

// Embedder computes OpenAI embeddings. Query embeddings are memoized
// in-process so asking the same question twice does not hit the API twice.
type Embedder struct {
	client *http.Client
	apiKey string
	memo   *gocache.Cache
}

func NewEmbedder() (*Embedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	client := retryablehttp.NewClient()
	client.Logger = nil

	return &Embedder{
		client: client.StandardClient(),
		apiKey: apiKey,
		memo:   gocache.New(15*time.Minute, 30*time.Minute),
	}, nil
}

// PrepareText truncates text to roughly fit the model's token budget,
// keeping the head and the tail. One token is estimated at four characters.
func PrepareText(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}

	half := maxChars / 2

	return text[:half] + "..." + text[len(text)-half:]
}

// Embed returns the embedding of text under the given model.
func (e *Embedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	info, ok := EmbeddingModels[model]
	if !ok {
		return nil, fmt.Errorf("unsupported embedding model %q", model)
	}

	prepared := PrepareText(text, info.MaxTokens)

	memoKey := model + "|" + prepared
	if cached, ok := e.memo.Get(memoKey); ok {
		return cached.([]float32), nil
	}

	body, err := json.Marshal(map[string]any{
		"model":      model,
		"input":      prepared,
		"dimensions": info.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", e.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings request failed: %v: %v", resp.Status, string(b))
	}

	var res struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}

	if len(res.Data) == 0 {
		return nil, fmt.Errorf("embeddings response carries no data: %v", string(b))
	}

	embedding := res.Data[0].Embedding
	if len(embedding) != info.Dimensions {
		return nil, fmt.Errorf("embedding has %v dimensions, want %v", len(embedding), info.Dimensions)
	}

	e.memo.Set(memoKey, embedding, gocache.DefaultExpiration)

	return embedding, nil
}
