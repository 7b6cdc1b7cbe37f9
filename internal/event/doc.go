// Package event defines the canonical event record and the normalization
// boundary between raw portal payloads and the rest of the pipeline.
//
// Raw records are validated and normalized exactly once, here. Everything
// downstream (store, dispatcher, channels) only ever sees the canonical
// Event shape.
package event
