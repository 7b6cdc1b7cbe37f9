// Package channel holds the notification channel adapters. Each adapter
// implements the same send contract and classifies its collaborator's
// failures into retryable versus permanent, which is what drives the
// dispatcher's retry/skip decision. External services (SMTP provider,
// document renderer, webhook endpoint) are only ever invoked from here.
package channel
