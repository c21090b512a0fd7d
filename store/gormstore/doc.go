// Package gormstore implements user.Store and session.Store on gorm.
//
// Any gorm dialector works; production deployments use gorm.io/driver/postgres
// and the tests run on an in-memory SQLite database. Open the database with
// [Open] so driver uniqueness errors are translated into gorm.ErrDuplicatedKey.
package gormstore
