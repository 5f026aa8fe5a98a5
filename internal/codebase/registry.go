package codebase

import (
	"sort"
	"sync"
)

// The registry is the only process-wide mutable state in the core.
// Registration happens once during startup (see codebases.Load); after
// that concurrent Resolve calls only take the read lock.
var (
	regMu   sync.RWMutex
	plugins = map[string]Codebase{}
)

// Register binds name to a plugin. Rebinding an already-registered name
// fails: silent override has bitten every plugin system that allowed
// it, so a duplicate is treated as a startup bug.
func Register(name string, cb Codebase) error {
	regMu.Lock()
	defer regMu.Unlock()
	if name == "" {
		return invalidNameError{reason: "empty identifier"}
	}
	if _, ok := plugins[name]; ok {
		return duplicateRegistrationError{name: name}
	}
	plugins[name] = cb
	return nil
}

// MustRegister is Register for init paths where a duplicate is a
// programming error.
func MustRegister(name string, cb Codebase) {
	if err := Register(name, cb); err != nil {
		panic(err)
	}
}

// Resolve returns the plugin registered under name. Lookup only, no
// side effects.
func Resolve(name string) (Codebase, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	cb, ok := plugins[name]
	if !ok {
		return nil, unknownCodebaseError{name: name}
	}
	return cb, nil
}

// Names lists the registered codebase identifiers, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(plugins))
	for name := range plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
