// Package broadcast implements the single-writer, multi-reader state holders shared by
// the session and collection layers.
//
// A Store owns one authoritative ordered sequence; a Slot owns one optional value. Every
// mutation is applied and then published synchronously to all current subscribers, in the
// order they subscribed, before the mutating call returns. Publications of one holder are
// serialized, so all subscribers observe mutations in the order they were applied.
//
// Values handed to callers and subscribers are copies produced by the holder's clone
// function. Each subscriber receives its own copy.
//
// Subscriber callbacks may call Get/Load and Subscribe, but must not mutate the holder they
// are observing: publication is not reentrant.
package broadcast
