package tool

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/agentgraph/errs"
)

const defaultMaxFetchBytes = 50000

// WebFetch downloads a page and returns its readable text.
type WebFetch struct {
	Client *http.Client
	// MaxBytes truncates the returned text; zero means 50000.
	MaxBytes int

	policy *bluemonday.Policy
}

// NewWebFetch creates a WebFetch using http.DefaultClient.
func NewWebFetch() *WebFetch {
	return &WebFetch{Client: http.DefaultClient, policy: bluemonday.UGCPolicy()}
}

func (w *WebFetch) Name() string { return "web_fetch" }

func (w *WebFetch) Description() string {
	return "Fetches a web page and returns its text content without markup, scripts or styles."
}

func (w *WebFetch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http or https URL"},
		},
		"required": []string{"url"},
	}
}

// Call fetches the url argument.
func (w *WebFetch) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := sonic.Unmarshal(args, &in); err != nil {
		return nil, errs.Newf(errs.KindParsing, "invalid fetch arguments: %w", err)
	}
	return w.Fetch(ctx, in.URL)
}

// Fetch returns the visible text of the page at rawURL.
func (w *WebFetch) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errs.Newf(errs.KindTool, "failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentgraph-webfetch/1.0")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errs.Newf(errs.KindTool, "failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Newf(errs.KindTool, "request failed with status code %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Newf(errs.KindTool, "failed to read body: %w", err)
	}

	policy := w.policy
	if policy == nil {
		policy = bluemonday.UGCPolicy()
	}
	clean := policy.SanitizeBytes(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(clean)))
	if err != nil {
		return "", errs.Newf(errs.KindParsing, "failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return "", errs.New(errs.KindTool, "no text content found")
	}

	limit := w.MaxBytes
	if limit <= 0 {
		limit = defaultMaxFetchBytes
	}
	if len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}
