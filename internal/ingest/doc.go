// Package ingest turns uploaded documents and raw text into searchable
// chunks.
//
// One ingestion runs strictly in order: authorize the target index,
// extract text, optionally redact secrets, chunk, embed against the
// index's dimension, journal a pending intent, upsert vectors, write the
// File and Chunk rows in one transaction, then mark the intent complete
// and publish an event.
//
// The vector write and the metadata write cannot share a transaction.
// The intent journal closes that gap: an intent left pending by a crash
// or failure is picked up by Reconciler.Sweep, which deletes vectors that
// never got a chunk row.
package ingest
