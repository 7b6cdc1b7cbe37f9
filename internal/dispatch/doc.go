// Package dispatch fans classified events out to notification channels
// with per-channel rate limiting and bounded retries. Delivery outcomes
// are persisted per (event, channel) pair so restarts never double-send.
package dispatch
