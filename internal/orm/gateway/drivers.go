package gateway

// Drivers accepted by Open: "postgres" (lib/pq), "pgx" (pgx stdlib) and
// "sqlite3" (mattn/go-sqlite3).
import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)
