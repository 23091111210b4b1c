// Package postgres provides the PostgreSQL implementations of the reminder
// coordination store and of the collaborator stores the pipeline reads from
// and writes to.
//
// Every store works against store.DBTX, so it can run on a *sql.DB or inside
// a transaction. Connections come from the pgx stdlib driver. Driver errors
// are translated to the sentinel errors of the store package by MapError.
//
// The coordination store keeps the event log, cursor, schedule index, job
// payloads, dedupe markers, and the last run report in tables created by the
// embedded goose migrations (see Migrate). Event appends take a transaction
// scoped advisory lock so that readers never observe a gap that is later
// filled by a slower writer.
package postgres
