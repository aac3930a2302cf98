// Package api implements the node's read-only diagnostics HTTP server.
//
// It exposes:
//   - GET /api/v1/health: liveness and version
//   - GET /api/v1/status: session state and the last cycle report
//   - GET /api/v1/metrics: Go runtime statistics
//   - GET /api/v1/cycles: recent cycles from the local journal
//   - GET /api/v1/cycles/{id}: the readings journalled for one cycle
//
// The server never touches the sensors or the MQTT session; it only reads
// state the control loop already publishes. It is disabled by default and
// should be bound to loopback.
package api
