// Package mcp exposes the vectord catalog to MCP clients over stdio.
//
// Tools act on behalf of a single owner fixed when the server is built:
// the owner of the configured API token, or the local user.
package mcp
