package database

import "github.com/gaborage/go-sqltx/database/types"

// Supported database vendors, as used in config.DatabaseConfig.Type.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
)
