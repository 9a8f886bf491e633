// Package signals provides typed unbounded queues split into a producer
// handle (Signal) and a consumer handle (Slot).
//
// A Signal is cheap to share between goroutines; sends never block.
// A Slot binds a handler and drains the queue on one worker goroutine,
// either free-running (Start) or tied to a context (StartContext).
// Events submitted through a single signal handle reach the handler in
// submission order; interleaving between distinct producers is
// unspecified unless routed through a dispatch.PriorityDispatcher.
package signals
