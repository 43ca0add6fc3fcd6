// Package store persists the access-control registry: credentials,
// users, and the access log. The offline validation path reads the
// registry for every swipe and appends one log row per granted
// passage; the anti-passback check reads the most recent granted
// passage back out.
//
// The Store interface hides the database; the GORM implementation runs
// on SQLite so a controller works standalone, with no external
// database to operate.
package store
