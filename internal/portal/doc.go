// Package portal fetches raw event listings from the external government
// portal. It knows nothing about deduplication or notification: its whole
// contract is authenticated fetch, rate-limited and retried, returning a
// sequence of raw records for the normalizer.
package portal
