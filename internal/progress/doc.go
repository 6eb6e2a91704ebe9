// Package progress carries dispatcher progress events to pluggable sinks.
// Emit never blocks the dispatcher; a background goroutine batches events and
// fans them out to sinks such as structured logs or Prometheus collectors.
package progress
