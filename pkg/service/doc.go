// Package service composes the output control subsystem.
//
// OutputService owns the registry, the state table, the timer scheduler and
// the dispatcher, and wires their lifecycles together: outputs added to the
// registry get a state entry, deleted outputs lose their state, timer and
// execution lock. Request handlers receive the service explicitly; there is
// no package-level state.
package service
