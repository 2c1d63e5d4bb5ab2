// Package cmd implements the command-line interface for inboxcal.
//
// This package provides the following commands:
//   - serve: Start the MCP server on stdio with calendar and scheduling tools
//   - agenda: Print upcoming events grouped by day
//   - detect: Run scheduling intent detection on text or a Gmail message
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Configuration is read from a TOML file, a .env file and the environment,
// with the persistent flags taking precedence.
package cmd
