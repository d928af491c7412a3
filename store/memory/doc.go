// Package memory provides in-memory implementations of store.Checkpointer
// and store.Store. Data lives for the lifetime of the process.
package memory
