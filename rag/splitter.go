package rag

import (
	"fmt"
	"maps"
	"strings"

	"github.com/smallnest/agentgraph/errs"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most ChunkSize bytes, trying each
// separator in turn so paragraphs stay together before lines, and lines
// before words. The empty separator splits between characters.
//
// Consecutive chunks share up to ChunkOverlap bytes of whole pieces.
type Splitter struct {
	ChunkSize    int // default 1000
	ChunkOverlap int
	Separators   []string
}

func (s Splitter) check() (size int, err error) {
	size = s.ChunkSize
	if size == 0 {
		size = 1000
	}
	if size < 0 || s.ChunkOverlap < 0 {
		return 0, errs.New(errs.KindSplitter, "chunk size and overlap must not be negative")
	}
	if s.ChunkOverlap >= size {
		return 0, errs.Newf(errs.KindSplitter, "chunk overlap %d must be smaller than chunk size %d", s.ChunkOverlap, size)
	}
	return size, nil
}

// Split returns the chunks of text. Whitespace-only chunks are dropped.
func (s Splitter) Split(text string) ([]string, error) {
	size, err := s.check()
	if err != nil {
		return nil, err
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return s.split(text, seps, size), nil
}

// SplitDocuments splits every document. A chunk keeps its parent's metadata
// plus parent_id and chunk_index, and is named "<parent>#<index>".
func (s Splitter) SplitDocuments(docs []Document) ([]Document, error) {
	var out []Document
	for _, doc := range docs {
		chunks, err := s.Split(doc.Content)
		if err != nil {
			return nil, err
		}
		for i, c := range chunks {
			meta := maps.Clone(doc.Metadata)
			if meta == nil {
				meta = make(map[string]any)
			}
			meta["parent_id"] = doc.ID
			meta["chunk_index"] = i
			out = append(out, Document{ID: fmt.Sprintf("%s#%d", doc.ID, i), Content: c, Metadata: meta})
		}
	}
	return out, nil
}

func (s Splitter) split(text string, seps []string, size int) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, c := range seps {
		if c == "" || strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range strings.Split(text, sep) {
		if len(piece) <= size {
			fitting = append(fitting, piece)
			continue
		}
		out = append(out, s.merge(fitting, sep, size)...)
		fitting = nil
		if len(rest) == 0 {
			out = appendChunk(out, piece)
		} else {
			out = append(out, s.split(piece, rest, size)...)
		}
	}
	return append(out, s.merge(fitting, sep, size)...)
}

// merge joins pieces back with sep into chunks no longer than size. After a
// chunk is emitted its trailing pieces are carried over while they fit in
// ChunkOverlap.
func (s Splitter) merge(pieces []string, sep string, size int) []string {
	var chunks, window []string
	length := 0
	grown := func(p string) int {
		if len(window) == 0 {
			return len(p)
		}
		return length + len(sep) + len(p)
	}
	dropFirst := func() {
		length -= len(window[0])
		if len(window) > 1 {
			length -= len(sep)
		}
		window = window[1:]
	}

	for _, p := range pieces {
		if len(window) > 0 && grown(p) > size {
			chunks = appendChunk(chunks, strings.Join(window, sep))
			for len(window) > 0 && (length > s.ChunkOverlap || grown(p) > size) {
				dropFirst()
			}
		}
		length = grown(p)
		window = append(window, p)
	}
	if len(window) > 0 {
		chunks = appendChunk(chunks, strings.Join(window, sep))
	}
	return chunks
}

func appendChunk(chunks []string, c string) []string {
	if c = strings.TrimSpace(c); c == "" {
		return chunks
	}
	return append(chunks, c)
}
