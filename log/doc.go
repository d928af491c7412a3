// Package log is the leveled logger shared by the graph engine, the
// prebuilt agents, the LLM cache and the CLI.
//
// Everything that logs takes a Logger, a four-method interface with
// printf-style Debug, Info, Warn and Error. Two implementations ship here:
// DefaultLogger on the standard library log package, and GologLogger on
// github.com/kataras/golog. NoOpLogger discards everything and is what tests
// pass to keep output clean.
//
// # What gets logged
//
// A compiled graph logs each node transition at debug level, resumes and
// interrupts at info level, and unsupported fan-out routes at warn level.
// The tools node warns on unknown tools and failed calls. CachedModel warns
// when its cache cannot be read or written and falls through to the model.
//
// # Wiring a logger
//
// Graphs take a logger at compile time; without one they use the package
// default:
//
//	logger := log.NewGologLoggerAt("[graph] ", log.LogLevelDebug)
//	runnable, err := g.Compile(graph.WithLogger(logger))
//
// Prebuilt agents and the RAG pipeline have their own options that end in
// the same place:
//
//	agent, err := prebuilt.CreateReactAgent(model, tools,
//		prebuilt.WithAgentLogger(logger))
//	pipeline, err := rag.NewPipeline(ix, model, rag.WithPipelineLogger(logger))
//	cached := llms.NewCachedModel(model, cache.NewMemoryCache(time.Hour)).WithLogger(logger)
//
// # Levels from configuration
//
// ParseLevel reads the names used in config files ("debug", "info", "warn",
// "error", "none"), case-insensitively. An empty level means info. The
// config package builds loggers this way from its log section:
//
//	log:
//	  level: debug
//	  backend: golog
//	  prefix: "[agent] "
//
// Level none yields a NoOpLogger regardless of backend.
//
// # Package default
//
// SetDefaultLogger and SetLogLevel replace the logger used by the package
// functions Debug, Info, Warn and Error and by graphs compiled without
// WithLogger. Swapping it is safe while other goroutines log.
package log
