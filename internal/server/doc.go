// Package server implements the MCP (Model Context Protocol) server that
// exposes answer-sheet grading as tools.
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
// Grading:
//   - omr_grade_auto: Grade a photo, finding the sheet outline automatically
//   - omr_grade_manual: Grade a photo using four user-picked corners
//   - omr_rectify: Straighten a photo without grading it
//   - omr_report: Grade a photo and render a PDF report
//
// Answer keys:
//   - omr_normalize_key: Clean a typed answer key
//   - omr_save_key: Save a key under a subject name
//   - omr_get_key: Fetch a saved key
//   - omr_list_subjects: List saved subjects
//
// Layouts:
//   - omr_templates: Describe the supported sheets
//
// Grading tools take the answer key from the request, then from the key
// saved under owner and subject, then from the layout's default key.
//
// # Image Caching
//
// Photos are loaded by path and cached, so a photo rectified once for corner
// picking is not decoded again when it is graded. Grading evicts the photo,
// a photo rewritten on disk is decoded again, and only the most recent few
// photos are kept.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"kind", "error"} for grading failures, otherwise the error string
//
// # Usage
//
//	srv := server.New(engine, keystore.NewMemory(), server.WithLogger(log))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
