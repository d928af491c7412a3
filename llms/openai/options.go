package openai

import (
	"net/http"
	"os"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

type options struct {
	token          string
	baseURL        string
	organization   string
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	httpClient     *http.Client
}

// Option configures the client.
type Option func(*options)

// WithToken sets the API key. Defaults to $OPENAI_API_KEY.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
// Defaults to $OPENAI_BASE_URL, then the public API.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

func WithOrganization(org string) Option {
	return func(o *options) {
		o.organization = org
	}
}

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithEmbeddingModel sets the model used by EmbedDocuments and EmbedQuery.
func WithEmbeddingModel(model string) Option {
	return func(o *options) {
		o.embeddingModel = model
	}
}

func WithTemperature(t float32) Option {
	return func(o *options) {
		o.temperature = t
	}
}

func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func defaultOptions() *options {
	return &options{
		token:          os.Getenv("OPENAI_API_KEY"),
		baseURL:        os.Getenv("OPENAI_BASE_URL"),
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
	}
}
