package testing

import "time"

// Logger levels used across test files.
const (
	// TestLoggerLevelDebug is the debug log level used in most tests
	TestLoggerLevelDebug = "debug"
	// TestLoggerLevelDisabled completely disables logging in tests
	TestLoggerLevelDisabled = "disabled"
)

// Database Constants
// Common database-related test strings (table names, connection values).
const (
	TestTableUsers      = "users"
	TestTableOrders     = "orders"
	TestUsername        = "testuser"
	TestDatabaseName    = "testdb"
	TestHostLocalhost   = "localhost"
	TestPasswordDefault = "testpass"
)

// Keys used by the database manager tests.
const (
	TestKeyPrimary = "primary"
	TestKeyReports = "reports"
)

// Time Duration Constants
// Common time durations used in test synchronization and timeouts.
const (
	// TestEventuallyTimeout is the timeout for require.Eventually assertions (500ms)
	TestEventuallyTimeout = 500 * time.Millisecond
	// TestEventuallyTick is the polling interval for require.Eventually (50ms)
	TestEventuallyTick = 50 * time.Millisecond
)

// Port Numbers
const (
	TestPortPostgreSQL = 5432
	TestPortOracle     = 1521
)
