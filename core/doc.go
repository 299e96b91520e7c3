// Package core defines the shared domain contracts of the bot: the raw event
// shape produced by the conversation engine, the closed set of normalized
// event kinds delivered to consumers, and the error taxonomy used across the
// bridge, registry and orchestrator layers.
//
// Raw events arrive from the engine with an open-ended string tag; they are
// converted exactly once, at the orchestration boundary, into Event values
// carrying an EventKind from the closed set. Higher layers never branch on
// raw strings.
package core
