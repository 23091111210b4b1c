// Package reminder implements the task reminder dispatch pipeline.
//
// Task mutation handlers append ReminderEvents to a shared event log through
// the Producer. A Consumer run drains the log from the persisted cursor and
// compiles events into one ScheduledJob per task, indexed by trigger time. A
// Dispatcher run delivers due jobs: it re-validates each job against the
// canonical task, resolves the current audience, claims a dedupe marker per
// member, writes notifications, fans out push messages, and retires the job.
//
// Consumer and Dispatcher keep no state between calls. They are driven by an
// external timer and may run concurrently from any number of processes; the
// only mutual exclusion needed is the atomic dedupe claim provided by the
// CoordinationStore.
package reminder
