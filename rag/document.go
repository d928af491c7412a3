package rag

import (
	"context"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/tool"
)

// Document is a piece of text that can be indexed and retrieved.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source returns the "source" metadata entry, or the ID when there is none.
func (d Document) Source() string {
	if s, ok := d.Metadata["source"].(string); ok && s != "" {
		return s
	}
	return d.ID
}

// Result is a retrieved document and its similarity to the query.
type Result struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// LoadReader reads all of r into one document.
func LoadReader(r io.Reader, id string, metadata map[string]any) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, errs.Newf(errs.KindLoader, "read %s: %w", id, err)
	}
	return Document{ID: id, Content: string(data), Metadata: maps.Clone(metadata)}, nil
}

// LoadFile reads a text file. The document ID is the file's base name and
// its source is the path.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, errs.Newf(errs.KindLoader, "open %s: %w", path, err)
	}
	defer f.Close()
	return LoadReader(f, filepath.Base(path), map[string]any{"source": path, "type": "text"})
}

// LoadURL fetches a web page as readable text.
func LoadURL(ctx context.Context, fetcher *tool.WebFetch, url string) (Document, error) {
	text, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return Document{}, errs.Newf(errs.KindLoader, "fetch %s: %w", url, err)
	}
	return Document{ID: url, Content: text, Metadata: map[string]any{"source": url, "type": "web"}}, nil
}
