// Package postgres stores users and sessions in PostgreSQL through a pgx
// connection pool.
//
// The schema ships as embedded goose migrations; call [Migrate] once at
// startup before constructing the stores. Lockout counters and session
// revocation are single conditional UPDATE statements, so concurrent
// requests against the same row never lose an increment or revoke twice.
package postgres
