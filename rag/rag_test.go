package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEmbedder counts a fixed vocabulary.
type wordEmbedder struct {
	vocab []string
	err   error
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{vocab: []string{"go", "python", "pasta"}}
}

func (e *wordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(e.vocab))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		for i, term := range e.vocab {
			if w == term {
				v[i]++
			}
		}
	}
	return v
}

func (e *wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(newWordEmbedder())
	require.NoError(t, ix.Add(context.Background(),
		Document{ID: "a", Content: "go go channels"},
		Document{ID: "b", Content: "python and go", Metadata: map[string]any{"source": "b.md"}},
		Document{ID: "c", Content: "pasta recipes"},
	))
	return ix
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func TestIndexSearch(t *testing.T) {
	ix := testIndex(t)
	assert.Equal(t, 3, ix.Len())

	results, err := ix.Search(context.Background(), "go", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)

	results, err = ix.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(results))
}

func TestIndexAddReplacesAndNames(t *testing.T) {
	ix := testIndex(t)
	require.NoError(t, ix.Add(context.Background(),
		Document{ID: "c", Content: "go pasta"},
		Document{Content: "python"},
	))
	assert.Equal(t, 4, ix.Len())

	results, err := ix.Search(context.Background(), "python", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(results[0].Document.ID, "doc_"))

	results, err = ix.Search(context.Background(), "pasta", 1)
	require.NoError(t, err)
	assert.Equal(t, "go pasta", results[0].Document.Content)
}

func TestIndexErrors(t *testing.T) {
	ctx := context.Background()
	ix := testIndex(t)

	_, err := ix.Search(ctx, "go", 0)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	broken := newWordEmbedder()
	broken.err = errors.New("quota")
	ix = NewIndex(broken)

	err = ix.Add(ctx, Document{ID: "x", Content: "go"})
	assert.Equal(t, errs.KindVectorStore, errs.KindOf(err))
	assert.EqualError(t, err, "vector store error: embed documents: quota")

	_, err = ix.Search(ctx, "go", 1)
	assert.Equal(t, errs.KindRetriever, errs.KindOf(err))
	assert.Zero(t, ix.Len())
}

func TestSplitterMergesPieces(t *testing.T) {
	s := Splitter{ChunkSize: 10, Separators: []string{" "}}
	chunks, err := s.Split("aaa bbb ccc ddd")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa bbb", "ccc ddd"}, chunks)

	s.ChunkOverlap = 3
	chunks, err = s.Split("aaa bbb ccc ddd")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa bbb", "bbb ccc", "ccc ddd"}, chunks)
}

func TestSplitterRecursesIntoLargePieces(t *testing.T) {
	s := Splitter{ChunkSize: 12}
	chunks, err := s.Split("short one\n\nthis paragraph is long")
	require.NoError(t, err)
	assert.Equal(t, []string{"short one", "this", "paragraph is", "long"}, chunks)

	chunks, err = Splitter{ChunkSize: 4, Separators: []string{""}}.Split("abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}

func TestSplitterErrors(t *testing.T) {
	_, err := Splitter{ChunkSize: 5, ChunkOverlap: 5}.Split("text")
	assert.Equal(t, errs.KindSplitter, errs.KindOf(err))

	_, err = Splitter{ChunkSize: -1}.Split("text")
	assert.Equal(t, errs.KindSplitter, errs.KindOf(err))
}

func TestSplitDocuments(t *testing.T) {
	docs, err := Splitter{ChunkSize: 7, Separators: []string{" "}}.SplitDocuments([]Document{
		{ID: "guide", Content: "one two three", Metadata: map[string]any{"source": "guide.md"}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "guide#0", docs[0].ID)
	assert.Equal(t, "one two", docs[0].Content)
	assert.Equal(t, "guide#1", docs[1].ID)
	assert.Equal(t, "three", docs[1].Content)
	assert.Equal(t, "guide.md", docs[1].Source())
	assert.Equal(t, "guide", docs[1].Metadata["parent_id"])
	assert.Equal(t, 1, docs[1].Metadata["chunk_index"])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("go notes"), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.ID)
	assert.Equal(t, "go notes", doc.Content)
	assert.Equal(t, path, doc.Source())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, errs.KindLoader, errs.KindOf(err))
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html><body><h1>Guide</h1><script>x()</script><p>Resume threads.</p></body></html>"))
	}))
	defer srv.Close()

	doc, err := LoadURL(context.Background(), tool.NewWebFetch(), srv.URL+"/guide")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Resume threads.")
	assert.NotContains(t, doc.Content, "x()")
	assert.Equal(t, srv.URL+"/guide", doc.Source())

	_, err = LoadURL(context.Background(), tool.NewWebFetch(), srv.URL+"/missing")
	assert.Equal(t, errs.KindLoader, errs.KindOf(err))
}

func TestRetrieverTool(t *testing.T) {
	search, err := NewRetrieverTool(testIndex(t), "search_docs", "", 2)
	require.NoError(t, err)
	assert.Equal(t, "search_docs", search.Name())
	assert.NotEmpty(t, search.Description())

	out, err := tool.Call(context.Background(), search, json.RawMessage(`{"query":"go"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "[1] a\ngo go channels\n\n[2] b.md\npython and go", out)
}

func TestPipeline(t *testing.T) {
	var prompt string
	model := llms.ChatFunc(func(_ context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error) {
		prompt = req.Messages[1].Text()
		return &llms.ChatResponse{Message: schema.AIMessage("Use goroutines [1].")}, nil
	})

	p, err := NewPipeline(testIndex(t), model, WithTopK(3), WithMinScore(0.5), WithPipelineLogger(&log.NoOpLogger{}))
	require.NoError(t, err)

	res, err := p.Invoke(context.Background(), State{Question: "go"})
	require.NoError(t, err)
	require.True(t, res.Complete())

	assert.Equal(t, "Use goroutines [1].", res.State.Answer)
	assert.Equal(t, []string{"a", "b.md"}, res.State.Citations)
	assert.Equal(t, []string{"a", "b"}, ids(res.State.Documents))
	assert.True(t, strings.HasPrefix(prompt, "Context:\n[1] a\ngo go channels"))
	assert.True(t, strings.HasSuffix(prompt, "Question: go"))
}

func TestPipelineNoPassages(t *testing.T) {
	var prompt string
	model := llms.ChatFunc(func(_ context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error) {
		prompt = req.Messages[1].Text()
		return &llms.ChatResponse{Message: schema.AIMessage("I do not know.")}, nil
	})
	p, err := NewPipeline(testIndex(t), model, WithMinScore(0.99), WithPipelineLogger(&log.NoOpLogger{}))
	require.NoError(t, err)

	res, err := p.Invoke(context.Background(), State{Question: "python"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "(no passages found)")
	assert.Empty(t, res.State.Citations)
}

func TestPipelineErrors(t *testing.T) {
	model := llms.ChatFunc(func(context.Context, *llms.ChatRequest) (*llms.ChatResponse, error) {
		return nil, errs.Modelf("offline")
	})
	_, err := NewPipeline(nil, model)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, err = NewPipeline(testIndex(t), nil)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	p, err := NewPipeline(testIndex(t), model, WithPipelineLogger(&log.NoOpLogger{}))
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), State{})
	assert.EqualError(t, err, "validation error: question is empty")

	_, err = p.Invoke(context.Background(), State{Question: "go"})
	assert.Equal(t, errs.KindModel, errs.KindOf(err))
}
