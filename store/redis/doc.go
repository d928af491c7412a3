// Package redis provides Redis-backed checkpoint and key/value storage.
//
// Checkpoints are stored as JSON values; each thread keeps a Redis list of
// checkpoint ids in insertion order, so Get reads the tail of the list and
// List walks it from the head.
//
// # Basic Usage
//
//	import (
//		"github.com/smallnest/agentgraph/graph"
//		"github.com/smallnest/agentgraph/store/redis"
//	)
//
//	saver := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:   "localhost:6379",
//		Prefix: "agentgraph:",   // Optional key prefix
//		TTL:    24 * time.Hour,  // Optional TTL for checkpoints
//	})
//	defer saver.Close()
//
//	runnable, err := g.Compile(graph.WithCheckpointer(saver))
//
// # Key Layout
//
//	<prefix>checkpoint:<thread>:<id>      checkpoint JSON
//	<prefix>thread:<thread>:checkpoints   list of ids, oldest first
//	<prefix>store:item:<ns>:<key>         key/value item JSON
//	<prefix>store:keys:<ns>               set of keys in a namespace
//	<prefix>store:namespaces              set of namespaces
//
// With a TTL both the checkpoint values and the thread list expire; an
// expired thread looks new to the engine.
package redis
