// Package server provides the HTTP surface of the tool runtime.
//
// The server is a thin chi router over executor.Runtime. Handlers decode
// and validate request DTOs, call the runtime and translate core error
// kinds into status codes. No tool logic lives here.
//
// # API Endpoints
//
//   - GET    /session                  list sessions
//   - POST   /session                  create a session
//   - GET    /session/{id}             get a session
//   - DELETE /session/{id}             close a session
//   - GET    /session/{id}/children    direct children of a session
//   - POST   /session/{id}/invoke      run one tool
//   - POST   /session/{id}/chain       run tools sequentially
//   - POST   /session/{id}/batch       run read-only tools concurrently
//   - POST   /session/{id}/message     chat-style chain of tool parts
//   - GET    /tool                     registered tool descriptors
//   - GET    /event                    Server-Sent Events stream
//   - GET    /metrics                  Prometheus metrics
//   - GET    /health                   liveness
//
// # Error Mapping
//
// Errors raised before a tool runs map to status codes:
//
//	UnknownTool, InvalidParameters, InvalidWorkingDirectory, UnknownParent -> 400
//	PermissionDenied                                                      -> 403
//	NotFound                                                              -> 404
//	everything else                                                       -> 500
//
// Once a tool has run, its outcome (success, failure or cancelled) is
// returned with 200 inside the result. Error bodies carry the error kind and
// the public reason only; file system paths never cross the network.
//
// # Event Streaming
//
// GET /event streams every bus event as "data: {json}" frames. The optional
// sessionID query parameter restricts the stream to one session. A
// heartbeat comment is written every 30 seconds.
package server
