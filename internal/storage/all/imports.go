// Package all wires the built-in storage backends into the storage factory.
//
// Importing it for side effects registers the "postgres", "sqlite", "mssql"
// and "mysql" kinds together with their DDL dialects:
//
//	import _ "retailetl/internal/storage/all"
package all

import (
	_ "retailetl/internal/storage/mssql"
	_ "retailetl/internal/storage/mysql"
	_ "retailetl/internal/storage/postgres"
	_ "retailetl/internal/storage/sqlite"
)
