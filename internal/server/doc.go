// Package server implements the MCP (Model Context Protocol) server for the
// circle detector.
//
// This package provides a JSON-RPC 2.0 server that exposes detection runs and
// their intermediate images through the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load image and get metadata (reload re-reads a changed file)
//   - circles_detect: Full detection run, optionally with overlay image
//   - circles_edges: Edge stage only, returns the binary mask
//   - circles_accumulator: Voting stage, returns one accumulator slice as a heatmap
//
// The three circles_* tools accept the same optional detector fields as the
// JSON config file (strategy, max_radius, edge_threshold, ...). They are
// layered over the configuration the server was started with and apply to
// that call only. A region or named_region restricts analysis to part of the
// image; reported coordinates always refer to the full image.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Failing to write an image to an output directory is logged and does not
// fail the call.
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
