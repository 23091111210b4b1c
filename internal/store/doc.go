// Package store defines the persistence contracts the reminder pipeline
// consumes from the rest of the application (tasks, workspace membership,
// notifications, push registrations) together with shared database helpers
// and error types. Implementations live in internal/platform/postgres.
package store
