// Package store persists the set of previously-seen event identities and
// their per-channel delivery state. It is the single source of truth for
// "is this new": Diff classifies a fetch against the seen set and commits
// the result in the same transaction, so a returned diff is always already
// durable.
package store
