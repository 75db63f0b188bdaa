// Package memory is the observation store: one SQLite database holding
// sessions, observations, summaries, prompts and the queue's pending rows,
// with versioned migrations and an FTS5 lexical index kept in sync by
// triggers. All content tables are append-only; rows are never updated.
package memory
