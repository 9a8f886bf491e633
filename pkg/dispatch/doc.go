// Package dispatch routes events to handlers.
//
// SyncDispatcher fans an event out to every handler registered under a
// channel name, inline on the caller. Runtime owns a slot and a
// route-keyed handler table, runs handlers on its own goroutine, and
// reports Loading/Success lifecycle notices per routed event.
// PriorityDispatcher merges many sequenced producers into one output in
// strict global sequence order.
package dispatch
