package channel

import (
	"context"

	"github.com/okonski/portalwatch/internal/event"
)

// Outcome classifies one send attempt.
type Outcome int

const (
	// Delivered means the collaborator accepted the notification.
	Delivered Outcome = iota
	// Retryable means a transient failure (timeout, 5xx-class).
	Retryable
	// Permanent means retrying cannot help (bad recipient, 4xx-class,
	// auth rejection).
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Result is one attempt's outcome plus a human-readable reason for
// anything other than success.
type Result struct {
	Outcome Outcome
	Reason  string
}

func Ok() Result                  { return Result{Outcome: Delivered} }
func Retry(reason string) Result  { return Result{Outcome: Retryable, Reason: reason} }
func Reject(reason string) Result { return Result{Outcome: Permanent, Reason: reason} }

// Channel is the uniform adapter contract the dispatcher fans out over.
type Channel interface {
	Name() string
	Send(ctx context.Context, evt event.Event) Result
}
