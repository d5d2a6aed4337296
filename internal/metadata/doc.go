// Package metadata persists the Project → Index → File → Chunk hierarchy and
// API tokens in SQLite.
//
// Every read and write that a caller can reach is scoped by owner: a row
// that exists but belongs to someone else is reported as ErrNotFound, the
// same as a row that does not exist. Deletes cascade through foreign keys.
package metadata
