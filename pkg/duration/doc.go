// Package duration implements the timed-on scheduler for outputs.
//
// A timed-on command (for example "on for 30 seconds") arms a timer that
// automatically turns the output off when it expires, unless a newer command
// for the same output cancels or replaces it first.
//
// # Timer Lifecycle
//
// The timer starts when the activation succeeds. When it expires the entry
// is removed and the expiry callback runs outside the manager's lock. The
// callback is expected to go through the same per-output serialization as
// manual commands.
//
// # Timer Replacement
//
// At most one timer exists per output. SetTimer replaces any existing timer
// for the same output ID; a replaced timer whose expiry was already in
// flight is discarded instead of firing against its successor.
//
// # Restart
//
// Timers are not persisted. After a restart every output is unreachable
// until its next successful command, so no timer needs to be resumed.
package duration
