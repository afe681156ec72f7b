// Package server assembles a drawbridge instance: it opens the SQLite store,
// wires the credential resolver and second-factor registry, mounts the /v3
// API plus health and metrics endpoints, and owns the HTTP server lifecycle.
package server
