// Package services wires vectord's process-wide clients and services.
//
// Build opens the metadata store, intent journal, vector store, embedding
// generator and event publisher once, then assembles the ingestion,
// retrieval and catalog services on top of them. Use the accessor methods
// to retrieve individual services and Close to release everything.
package services
