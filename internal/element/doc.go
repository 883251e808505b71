// Package element defines the unified UI tree model shared by all extraction
// backends: nodes with bounds, capability flags, and ordered children, plus
// the snapshot-scoped action table that hides live backend handles behind an
// opaque invoker interface.
package element
