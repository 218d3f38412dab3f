// Package database provides SQLite connectivity for the sqlite output format.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Schema migrations loaded from an fs.FS (normally the embedded
//     files registered by the migrations package)
//   - Connection lifecycle and transactions
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "readings.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are forward-only files named YYYYMMDD_HHMMSS_description.sql.
// Each one is applied in its own transaction and recorded in schema_migrations.
package database
