// Package layout derives the visual node/edge arrangement of a pipeline
// snapshot. It is a pure function of the latest snapshot and the user's
// stored drag/resize overrides: the engine is re-run after every full-state
// replacement, and overrides are the only local state that survives one.
package layout
