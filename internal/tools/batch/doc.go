// Package batch provides helpers for MCP tools that act on several ids in
// one call.
//
// This package includes helpers for:
//   - Parsing parameters that accept both single values and arrays
//   - Running the per-id work with bounded concurrency
//   - Reporting partial failures in one consistent structure
package batch
