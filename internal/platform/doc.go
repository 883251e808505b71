// Package platform declares the interfaces through which the core talks to
// the host application: the live widget hierarchy, embedded web surfaces, the
// accessibility tree, input synthesis, mutation signals, and the single
// UI-loop executor everything toolkit-touching must run on. The host process
// supplies the implementations; the core ships none.
package platform
