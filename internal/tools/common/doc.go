// Package common holds helpers shared by the MCP tool packages: the
// instrumentation wrapper, argument parsing and error formatting.
package common
