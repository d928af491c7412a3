package rag

import (
	"context"
	"slices"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/schema"
)

const (
	RetrieveNode = "retrieve"
	GenerateNode = "generate"
)

const defaultRAGPrompt = "Answer the question using only the numbered context passages. " +
	"Cite passages like [1]. If the context does not contain the answer, say you do not know."

// State flows through a retrieval pipeline.
type State struct {
	Question  string   `json:"question"`
	Documents []Result `json:"documents,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

// Merge takes every non-empty field of o.
func (s State) Merge(o State) State {
	if o.Question != "" {
		s.Question = o.Question
	}
	if o.Documents != nil {
		s.Documents = o.Documents
	}
	if o.Answer != "" {
		s.Answer = o.Answer
	}
	if o.Citations != nil {
		s.Citations = o.Citations
	}
	return s
}

type pipelineConfig struct {
	topK         int
	minScore     float64
	systemPrompt string
	logger       log.Logger
	compile      []graph.CompileOption
}

// PipelineOption configures NewPipeline.
type PipelineOption func(*pipelineConfig)

// WithTopK sets how many documents are retrieved. Default 4.
func WithTopK(k int) PipelineOption {
	return func(c *pipelineConfig) { c.topK = k }
}

// WithMinScore drops retrieved documents scoring below score.
func WithMinScore(score float64) PipelineOption {
	return func(c *pipelineConfig) { c.minScore = score }
}

// WithPrompt replaces the instructions given to the model.
func WithPrompt(prompt string) PipelineOption {
	return func(c *pipelineConfig) { c.systemPrompt = prompt }
}

// WithPipelineLogger sets the logger of the pipeline nodes.
func WithPipelineLogger(l log.Logger) PipelineOption {
	return func(c *pipelineConfig) { c.logger = l }
}

// WithPipelineCompileOptions passes options to the graph compiler.
func WithPipelineCompileOptions(opts ...graph.CompileOption) PipelineOption {
	return func(c *pipelineConfig) { c.compile = append(c.compile, opts...) }
}

// NewPipeline builds a two node graph: retrieve fills Documents from ix,
// generate asks model to answer Question from them.
func NewPipeline(ix *Index, model llms.ChatModel, opts ...PipelineOption) (*graph.StateRunnable[State], error) {
	if ix == nil {
		return nil, errs.New(errs.KindValidation, "pipeline needs an index")
	}
	if model == nil {
		return nil, errs.New(errs.KindValidation, "pipeline needs a model")
	}
	cfg := pipelineConfig{topK: 4, systemPrompt: defaultRAGPrompt, logger: log.GetDefaultLogger()}
	for _, o := range opts {
		o(&cfg)
	}

	g := graph.NewStateGraph[State]()
	g.AddNodeFunc(RetrieveNode, "Find passages related to the question", func(ctx context.Context, s State) (State, error) {
		if s.Question == "" {
			return s, errs.New(errs.KindValidation, "question is empty")
		}
		results, err := ix.Search(ctx, s.Question, cfg.topK)
		if err != nil {
			return s, err
		}
		results = slices.DeleteFunc(results, func(r Result) bool { return r.Score < cfg.minScore })
		cfg.logger.Debug("retrieved %d documents", len(results))
		s.Documents = results
		return s, nil
	})
	g.AddNodeFunc(GenerateNode, "Answer from the retrieved passages", func(ctx context.Context, s State) (State, error) {
		passages := "(no passages found)"
		if len(s.Documents) > 0 {
			passages = FormatContext(s.Documents)
		}
		resp, err := model.Chat(ctx, &llms.ChatRequest{Messages: []schema.Message{
			schema.SystemMessage(cfg.systemPrompt),
			schema.HumanMessage("Context:\n" + passages + "\n\nQuestion: " + s.Question),
		}})
		if err != nil {
			return s, err
		}
		s.Answer = resp.Message.Text()
		s.Citations = make([]string, len(s.Documents))
		for i, r := range s.Documents {
			s.Citations[i] = r.Document.Source()
		}
		return s, nil
	})
	g.SetEntryPoint(RetrieveNode)
	g.AddEdge(RetrieveNode, GenerateNode)
	g.AddEdge(GenerateNode, graph.END)

	return g.Compile(append([]graph.CompileOption{graph.WithName("rag"), graph.WithLogger(cfg.logger)}, cfg.compile...)...)
}
