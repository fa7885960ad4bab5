// Package all registers every storage backend.
package all

import (
	_ "inspector/internal/storage/mssql"
	_ "inspector/internal/storage/postgres"
	_ "inspector/internal/storage/sqlite"
)
