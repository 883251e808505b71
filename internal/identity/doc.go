// Package identity attaches stable, cross-snapshot indices to element trees.
// None of the extraction backends expose a persistent per-element identifier
// across re-layouts, so identity flows through a fingerprint over each node's
// stable attributes: a remote caller can issue a command against an index
// captured in an earlier snapshot and have it resolve to the same logical
// element as long as the screen has not meaningfully changed.
package identity
