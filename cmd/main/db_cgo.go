//go:build cgo_sqlite

package main

import _ "github.com/mattn/go-sqlite3"

// driverName selects the cgo SQLite driver.
const driverName = "sqlite3"
