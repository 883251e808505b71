package platform

import "sync"

// Host bundles everything the embedding application supplies: the mandatory
// bridge plus the optional operator surfaces.
type Host struct {
	Bridge   Bridge
	Prompter Prompter
	Narrator Narrator
}

var (
	hostMu     sync.RWMutex
	registered *Host
)

// RegisterHost installs the embedding application's platform bindings. Hosts
// call it from an init function before the agent entrypoint runs; a second
// registration replaces the first.
func RegisterHost(h *Host) {
	hostMu.Lock()
	defer hostMu.Unlock()
	registered = h
}

// RegisteredHost returns the installed bindings, or false when no host has
// registered.
func RegisteredHost() (*Host, bool) {
	hostMu.RLock()
	defer hostMu.RUnlock()
	if registered == nil || registered.Bridge == nil {
		return nil, false
	}
	return registered, true
}
