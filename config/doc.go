// Package config loads agentgraph applications from YAML.
//
// A file looks like:
//
//	graph:
//	  name: helper
//	  max_iterations: 25
//	  system_prompt: You are a helpful assistant.
//	checkpoint:
//	  backend: sqlite
//	  path: ./agent.db
//	model:
//	  api_key: ${OPENAI_API_KEY}
//	  model: gpt-4o-mini
//	cache:
//	  backend: memory
//	  ttl: 10m
//	memory:
//	  strategy: window
//	  size: 40
//	log:
//	  level: debug
//	  backend: golog
//
// ${VAR} references are expanded from the environment, which LoadEnv can
// fill from .env files first. The factories turn each section into the
// matching runtime component.
package config
