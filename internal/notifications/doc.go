// Package notifications delivers recorder events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Per-event toggles
// in the notifications section let a rig silence routine "session saved"
// pushes while still alerting on write failures and device errors.
package notifications
