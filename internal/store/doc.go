package store

// Package store persists the two cross-run facts the pipeline needs:
// which content IDs have already been processed (history) and previously
// extracted video metadata (cache). Both live in one SQLite database so
// concurrent items get per-key atomic writes instead of whole-file
// rewrites.
