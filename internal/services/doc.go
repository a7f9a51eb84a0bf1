// Package services assembles the mathrag runtime from configuration.
//
// New connects the embedding provider, knowledge store, feedback sinks and
// LLM-backed pipeline stages, and the resulting Registry hands them to the
// HTTP server, the MCP server and the batch worker. Close releases them in
// reverse order.
package services
