// Package session persists the CLI's login session (email and token pair)
// in a local SQLite key/value table.
//
// Key Types
//
//   - type Repository        — key/value contract used by the client services
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := session.NewSQLiteRepository(db)
//	_ = repo.Set(ctx, session.KeyRefreshToken, []byte(token))
//	v, _ := repo.Get(ctx, session.KeyRefreshToken)
package session
