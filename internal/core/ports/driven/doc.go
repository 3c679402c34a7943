// Package driven defines the secondary ports of the corpus engine: the store
// and index interfaces the core services depend on. The SQLite adapter in
// internal/adapters/driven/storage/sqlite implements all of them.
package driven
