package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/errs"
)

const braveDefaultURL = "https://api.search.brave.com/res/v1/web/search"

// BraveSearch searches the web with the Brave Search API.
type BraveSearch struct {
	APIKey  string
	BaseURL string
	Count   int
	Country string
	Lang    string
	Client  *http.Client
}

type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) {
		b.BaseURL = baseURL
	}
}

// WithBraveCount sets the number of results to return, clamped to 1-20.
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		b.Count = clampCount(count)
	}
}

// WithBraveCountry sets the country code for search results (e.g., "US", "CN").
func WithBraveCountry(country string) BraveOption {
	return func(b *BraveSearch) {
		b.Country = country
	}
}

// WithBraveLang sets the language code for search results (e.g., "en", "zh").
func WithBraveLang(lang string) BraveOption {
	return func(b *BraveSearch) {
		b.Lang = lang
	}
}

// WithBraveHTTPClient replaces the HTTP client.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *BraveSearch) {
		b.Client = c
	}
}

// NewBraveSearch creates a new BraveSearch tool.
// If apiKey is empty, it tries to read from BRAVE_API_KEY environment variable.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, errs.New(errs.KindConfig, "BRAVE_API_KEY not set")
	}

	b := &BraveSearch{
		APIKey:  apiKey,
		BaseURL: braveDefaultURL,
		Count:   10,
		Country: "US",
		Lang:    "en",
		Client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func clampCount(n int) int {
	return min(max(n, 1), 20)
}

func (b *BraveSearch) Name() string {
	return "brave_search"
}

func (b *BraveSearch) Description() string {
	return "A privacy-focused search engine powered by Brave. " +
		"Useful for finding current information and answering questions."
}

func (b *BraveSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search query"},
			"count": map[string]any{"type": "integer", "description": "Number of results, 1-20"},
		},
		"required": []string{"query"},
	}
}

type braveArgs struct {
	Query string `json:"query"`
	Count int    `json:"count,omitempty"`
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Call runs the search and returns the results as numbered text.
func (b *BraveSearch) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in braveArgs
	if err := sonic.Unmarshal(args, &in); err != nil {
		return nil, errs.Newf(errs.KindParsing, "invalid search arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, errs.New(errs.KindValidation, "query is required")
	}
	count := b.Count
	if in.Count > 0 {
		count = clampCount(in.Count)
	}

	params := url.Values{}
	params.Set("q", in.Query)
	params.Set("count", strconv.Itoa(count))
	if b.Country != "" {
		params.Set("country", b.Country)
	}
	if b.Lang != "" {
		params.Set("search_lang", b.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.Newf(errs.KindTool, "failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client().Do(req)
	if err != nil {
		return nil, errs.Newf(errs.KindTool, "failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.KindRateLimit, "brave api rate limited the request")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindTool, "brave api returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Newf(errs.KindTool, "failed to read response: %w", err)
	}
	var result braveResponse
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, errs.Newf(errs.KindParsing, "failed to decode response: %w", err)
	}

	var sb strings.Builder
	for i, r := range result.Web.Results {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nDescription: %s\n\n", i+1, r.Title, r.URL, r.Description)
	}
	if sb.Len() == 0 {
		return "No results found", nil
	}
	return sb.String(), nil
}

func (b *BraveSearch) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}
