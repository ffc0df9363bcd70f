// Package broker implements the adapter between the typed signal model and
// a generic key/value data broker reached over gRPC.
//
// The broker speaks a loosely-typed protocol: values on the wire are
// JSON-like generic values (null, bool, number, string, list, struct) and
// paths are slash-delimited. This package bridges that to the application's
// dotted paths and typed values through two layers:
//
//   - Facade owns the raw RPC plumbing: a unary point read (GetReport), a
//     job-based point write (CreateJob), and a server-streaming subscribe
//     (ListenReport). It attaches per-call metadata and wraps transport
//     failures, but never interprets payloads.
//
//   - Client is the surface the application consumes. It encodes writes and
//     decodes reads via the codec package, and flattens streamed nested
//     struct updates into one reply per leaf path.
//
// All operations are asynchronous: unary calls return a Result awaited by
// the caller, subscriptions deliver replies through registered handlers.
// Handlers run on transport goroutines and may execute concurrently.
//
// Reads and writes carry at most one path per call; the broker's request
// messages have no batch form. Issue one call per path.
package broker
