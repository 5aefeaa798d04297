// Package services provides shared plumbing for the pipeline's adapter
// layer: sentinel error markers used for failure classification and
// context helpers that carry job identity through adapter calls.
//
// Adapters (TTS, blob store, media probes) tag their failures with one of
// the exported sentinels via Wrap so the worker can classify them without
// string matching against adapter internals.
package services
