package storage

// Package storage provides a minimal key -> JSON persistence layer used by
// the watcher (fingerprint + per-section state) and the sticker registry.
//
// Values are always replaced whole, never patched, so an interrupted write
// can't leave half-updated state behind.
