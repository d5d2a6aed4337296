// Package vectorstore is the thin contract between vectord and an external
// vector database.
//
// An Adapter stores precomputed vectors under an index name and answers
// nearest-neighbour queries. It never computes embeddings and never looks
// inside vectors. Two backends ship with vectord:
//
//   - chromem: embedded, persistent, no external service (default)
//   - qdrant: remote Qdrant over gRPC
//
// Every stored vector carries a typed Metadata record whose ID is the
// vectorId joining it to a relational Chunk row.
package vectorstore
