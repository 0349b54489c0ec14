// Package storage provides policy.Storage backends.
//
// SQLiteStorage persists policies in a single table and works with either
// database/sql SQLite driver present in the module: modernc.org/sqlite
// ("sqlite", pure Go, the default) or github.com/mattn/go-sqlite3
// ("sqlite3", requires cgo). IDs come from an AUTOINCREMENT column so
// deleted IDs are never handed out again.
//
// MemoryStorage keeps policies in a map guarded by a RWMutex and is used by
// tests and by the "memory" backend for throwaway instances.
//
// Open builds the backend named in the storage section of the configuration.
package storage
