package portal

import "fmt"

// AuthError means the portal rejected the configured credentials. Fatal
// for the cycle and never retried within it, so a bad password does not
// turn into a retry storm against the portal.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("portal: credentials rejected (status %d)", e.Status)
}

// TransportError is a network-level failure that survived the bounded
// retry budget. Fatal for the cycle; the next tick starts fresh.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("portal: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the portal response no longer matches the expected
// shape. Surfaced distinctly from transport failures so operators can
// tell format drift apart from a flaky network.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("portal: unexpected response shape: %s", e.Reason)
}
