// Package reload runs code loading operations in strict arrival order.
//
// A Queue never runs two operations at once. Each Request either carries
// source text to evaluate or names a resource that the environment's Loader
// fetches: ScriptTagLoader for browser hosts, WorkerImportLoader for workers
// and ProcessRequireLoader for process hosts. Every operation is bounded by a
// timeout; a failed or timed out operation is reported to its callback and
// the queue moves on.
package reload
