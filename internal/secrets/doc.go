// Package secrets finds credentials in document text with the gitleaks rule
// set and replaces them with [REDACTED:rule:preview] markers before the text
// is chunked and embedded.
package secrets
