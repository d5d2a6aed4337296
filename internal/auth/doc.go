// Package auth issues and verifies API tokens and resolves the owner
// identity of a request.
//
// Raw tokens have the form vtk_<base64url(32 random bytes)> and are shown
// once; only their SHA-256 hex digest is stored. The owner of a token is
// its user id. Local callers without a token (the MCP stdio server, vctl
// against a local database) use LocalOwnerID, a digest of the OS user name.
package auth
