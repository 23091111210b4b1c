// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database.
//
// Tests using it are compiled only with the integration build tag and skip
// themselves when no database URL is configured:
//
//	PECAL_TEST_DB_URL=postgres://localhost:5432/pecal_test?sslmode=disable \
//	    go test -tags=integration ./...
//
// GetTestDBWithT opens and pings a connection, SetupTestDatabaseSchema applies
// the embedded migrations, and ResetReminderTables clears the coordination
// tables between tests.
package testdb
