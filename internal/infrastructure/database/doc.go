// Package database provides the SQLite connection and schema migrations for
// the cash card service, plus the Postgres opener used by the postgres card
// backend.
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded by the top-level migrations package. Each version
// has an .up.sql file and, optionally, a .down.sql file. All queries use
// parameterised statements.
package database
