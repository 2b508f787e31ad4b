// Package server implements the MCP (Model Context Protocol) server of the
// frame console.
//
// The console lets an operator, or an MCP client acting for one, browse raw
// scientific frames, inspect them, and hand them to the inference backend.
// Frames are either standard images or raw .dat sample grids, which are
// decoded to 8-bit grayscale PNG on background workers.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Operator notifications ("Failed to decode frame", "Unsupported file type",
// inference progress) are sent as notifications/message. Each carries the
// show flag and message of the notification line, so a client sees both the
// message appear and the line clear again.
//
// # Available Tools
//
// Single Frame:
//   - frame_open, frame_close, frame_info
//
// Region and Analysis (on the single frame or the folder frame):
//   - frame_crop: Extract and record a region of interest
//   - frame_probe: Pixel colour, intensity and raw grid value
//   - frame_histogram, frame_features: Grey-level statistics
//   - frame_colorize: False-colour rendering
//
// Decoding and Handles:
//   - dat_decode: Decode a grid without selecting it
//   - handle_fetch, handle_release: Resolve or revoke display handles
//
// Folder Navigation:
//   - folder_open, folder_next, folder_prev, folder_goto, folder_close
//
// Inference Backend:
//   - infer, infer_folder, crop_config_get, crop_config_put
//
// Backend Logs:
//   - logs_connect, logs_disconnect, logs_list, logs_clear
//
// Status:
//   - console_status
//
// # Display Handles
//
// Every rendered frame lives in the handle registry under a
// blob:frame-console/N URL until it is released. The frame managers release
// the handles they own when the frame is replaced or closed. The processed
// image of infer is released by the next infer and by frame_close; handles
// returned by dat_decode and frame_colorize belong to the client.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
