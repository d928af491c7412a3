package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smallnest/agentgraph/config"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/memory"
	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/smallnest/agentgraph/rag"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
)

const chatHelp = "commands: /reset starts over, /exit quits"

func runChat(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "YAML config file; defaults apply when empty")
	envFile := fs.String("env", ".env", "dotenv file loaded before the config")
	transcript := fs.String("transcript", "", "write the conversation as HTML to this file on exit")
	plain := fs.Bool("plain", false, "disable terminal styling")
	docs := fs.String("docs", "", "comma separated files or URLs offered to the agent through a search_docs tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadEnv(*envFile); err != nil {
		return err
	}
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	cp, err := config.OpenCheckpointer(ctx, cfg.Checkpoint)
	if err != nil {
		return err
	}
	model, err := config.NewChatModel(cfg.Model, cfg.Cache)
	if err != nil {
		return err
	}

	tools := chatTools(logger)
	if *docs != "" {
		embedder, err := config.NewEmbeddings(cfg.Model)
		if err != nil {
			return err
		}
		search, err := knowledgeTool(ctx, embedder, strings.Split(*docs, ","))
		if err != nil {
			return err
		}
		tools = append(tools, search)
	}

	opts, err := agentOptions(cfg, cp, logger)
	if err != nil {
		return err
	}
	chat, err := prebuilt.NewChatAgent(model, tools, opts...)
	if err != nil {
		return err
	}

	st := newStyles(*plain)
	fmt.Fprintln(stdout, st.title("agentgraph chat, thread "+chat.ThreadID()))
	fmt.Fprintln(stdout, st.toolLine(chatHelp))

	s := &session{chat: chat, in: bufio.NewScanner(stdin), out: stdout, st: st}
	if err := s.loop(ctx); err != nil {
		return err
	}

	if *transcript != "" {
		page := transcriptHTML("Conversation "+chat.ThreadID(), chat.History())
		if err := os.WriteFile(*transcript, page, 0o644); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
		fmt.Fprintln(stdout, st.toolLine("transcript written to "+*transcript))
	}
	return nil
}

// agentOptions maps the graph section and the opened backends onto agent
// options.
func agentOptions(cfg *config.Config, cp store.Checkpointer, logger log.Logger) ([]prebuilt.AgentOption, error) {
	g := cfg.Graph
	opts := []prebuilt.AgentOption{
		prebuilt.WithAgentLogger(logger),
		prebuilt.WithParallelToolCalls(g.ParallelTools),
	}
	if g.Name != "" {
		opts = append(opts, prebuilt.WithAgentName(g.Name))
	}
	if g.SystemPrompt != "" {
		opts = append(opts, prebuilt.WithSystemPrompt(g.SystemPrompt))
	}
	if g.MaxSteps > 0 {
		opts = append(opts, prebuilt.WithMaxSteps(g.MaxSteps))
	}
	if len(g.InterruptBefore) > 0 {
		opts = append(opts, prebuilt.WithInterruptBefore(g.InterruptBefore...))
	}
	if len(g.InterruptAfter) > 0 {
		opts = append(opts, prebuilt.WithInterruptAfter(g.InterruptAfter...))
	}
	if cp != nil {
		opts = append(opts, prebuilt.WithCheckpointer(cp))
	}
	if g.MaxIterations > 0 {
		opts = append(opts, prebuilt.WithCompileOptions(graph.WithMaxIterations(g.MaxIterations)))
	}

	strategy, err := config.NewMemoryStrategy(cfg.Memory)
	if err != nil {
		return nil, err
	}
	if strategy != nil {
		opts = append(opts, prebuilt.WithMiddleware(memory.Middleware(strategy)))
	}
	return opts, nil
}

// chatTools always offers web_fetch, plus brave_search when a key is set.
func chatTools(logger log.Logger) []tool.Tool {
	tools := []tool.Tool{tool.NewWebFetch()}
	if search, err := tool.NewBraveSearch(""); err == nil {
		tools = append(tools, search)
	} else {
		logger.Debug("brave search disabled: %v", err)
	}
	return tools
}

// knowledgeTool loads, chunks and indexes sources, then exposes the index
// as the search_docs tool.
func knowledgeTool(ctx context.Context, embedder llms.Embeddings, sources []string) (tool.Tool, error) {
	fetcher := tool.NewWebFetch()
	var docs []rag.Document
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		var (
			doc rag.Document
			err error
		)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			doc, err = rag.LoadURL(ctx, fetcher, src)
		} else {
			doc, err = rag.LoadFile(src)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	chunks, err := rag.Splitter{ChunkSize: 1000, ChunkOverlap: 100}.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	ix := rag.NewIndex(embedder)
	if err := ix.Add(ctx, chunks...); err != nil {
		return nil, err
	}
	return rag.NewRetrieverTool(ix, "search_docs", "Searches the documents given at startup and returns the most relevant passages.", 4)
}

type session struct {
	chat *prebuilt.ChatAgent
	in   *bufio.Scanner
	out  io.Writer
	st   styles
}

func (s *session) loop(ctx context.Context) error {
	for {
		line, ok := s.ask(s.st.userLabel("you> "))
		if !ok {
			return s.in.Err()
		}
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := s.chat.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(s.out, s.st.toolLine("new thread "+s.chat.ThreadID()))
			continue
		}

		answer, err := s.chat.Chat(ctx, line)
		answer, err = s.approve(ctx, answer, err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(s.out, s.st.errLine(err.Error()))
			continue
		}
		fmt.Fprintf(s.out, "%s%s\n", s.st.agentLabel("agent> "), answer)
	}
}

// approve handles paused turns: the pending tool calls are shown and the
// turn resumes only when the user agrees. Declining starts a new thread.
func (s *session) approve(ctx context.Context, answer string, err error) (string, error) {
	for {
		var pause *graph.GraphInterrupt
		if !errors.As(err, &pause) {
			return answer, err
		}

		if last, ok := lastAI(s.chat); ok {
			for _, c := range last.ToolCalls {
				fmt.Fprintln(s.out, s.st.toolLine(fmt.Sprintf("pending %s(%s)", c.Name, string(c.Arguments))))
			}
		}
		reply, ok := s.ask(fmt.Sprintf("paused before %s, continue? [y/N] ", pause.NextNode))
		if !ok || !strings.EqualFold(reply, "y") {
			if err := s.chat.Reset(ctx); err != nil {
				return "", err
			}
			return "(cancelled, new thread " + s.chat.ThreadID() + ")", nil
		}
		answer, err = s.chat.Resume(ctx)
	}
}

func lastAI(chat *prebuilt.ChatAgent) (schema.Message, bool) {
	return schema.NewMessageState(chat.History()...).LastAI()
}

func (s *session) ask(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}
