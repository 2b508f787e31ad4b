// Package offload runs frame decoding in a background unit so large grids
// never block the caller's control flow.
//
// Every DecodeAsync call spawns exactly one Worker, moves the sample buffer
// into it, and waits for exactly one Response. Workers are not pooled or
// reused. A new one is started for every job and terminated once the job
// ends. That costs a spawn per frame; the default goroutine spawner keeps the
// cost small.
//
// # Outcomes
//
// A call ends in exactly one of three states:
//
//   - Succeeded: the worker returned a PNG container. It is registered in the
//     handle registry and the Future resolves to its DisplayHandle.
//   - Failed: the worker reported Success=false (bad dimensions, short
//     buffer, encoding failure). The Future resolves to a nil handle and a nil
//     error. Callers test for nil rather than for an error.
//   - Errored: the worker itself broke (spawn failure, post failure, panic,
//     closed channels). The Future resolves to a *TransportError.
//
// The worker is terminated exactly once on every path where it exists.
//
// # Ownership
//
// Buffer models a transferable byte slice. DecodeAsync detaches it, so the
// caller's Buffer is empty afterwards and the worker is the only owner of the
// bytes.
//
// # Cancellation
//
// A dispatched job cannot be aborted. Future.Wait accepts a context that
// bounds how long the caller waits. When it expires the worker still runs to
// completion and is terminated when its response arrives. A worker that
// never answers keeps an unbounded Wait blocked forever.
package offload
