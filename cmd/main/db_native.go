//go:build !cgo_sqlite

package main

import _ "modernc.org/sqlite"

// driverName selects the pure Go SQLite driver, the default build.
const driverName = "sqlite"
