// Package card holds the cash card model, its owner-scoped stores and the
// lifecycle service used by the HTTP API.
//
// Ownership is never read from a request body. The Service stamps the
// caller's username on every write and every Store read filters on it, so a
// card owned by another user is indistinguishable from one that does not
// exist: both yield ErrNotFound.
//
// Three Store implementations are provided:
//
//   - SQLiteStore: the cashcards table created by the embedded migrations.
//   - PostgresStore: the same schema on Postgres, created by EnsureSchema.
//   - MemoryStore: process-local, for tests and throwaway runs.
//
// Listings are ordered by the resolved pagination.PageRequest. The resolver
// always appends an id key, so pages never overlap or skip cards.
package card
