// Package events decouples task write paths from the reminder pipeline.
//
// Handlers that create, update, or delete tasks emit a TaskChangeEvent through
// an EventEmitter. The reminder producer registers as an EventHandler and
// appends the corresponding reminder event to the event log, so task code
// never imports the pipeline and a pipeline outage never fails a task write.
package events
