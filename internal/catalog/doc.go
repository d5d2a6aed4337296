// Package catalog is the caller-facing surface of vectord: project, index
// and file management, ingestion, search and API tokens.
//
// Every operation takes the caller's owner id and returns an Envelope. No
// operation returns a Go error; failures are classified into a stable code
// and a message that never reveals whether another owner's resource exists.
package catalog
