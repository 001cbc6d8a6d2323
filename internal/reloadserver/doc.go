// SPDX-License-Identifier: MPL-2.0

// Package reloadserver pushes change events to browsers over WebSocket.
//
// Every connected client receives a JSON message for each event published by
// a livereload.ChangeWatcher:
//
//	{"type":"file-changed","path":"css/app.css","root":"www"}
//
// Paths always use forward slashes. The server also answers GET /healthz with
// the number of connected clients.
package reloadserver
