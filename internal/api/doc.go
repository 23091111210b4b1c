// Package api exposes the reminder pipeline over HTTP: the cron trigger and
// its last-run report, an event intake for task write paths running in other
// processes, and job inspection. Handlers translate HTTP concerns into calls
// on reminder.Service and events.EventEmitter and never carry pipeline logic.
package api
