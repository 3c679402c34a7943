// Package httpapi is the persistent localhost sidecar: a loopback-only HTTP
// server exposing the corpus engine to external collaborators. It owns the
// process-coordination portfile, the token guard on write endpoints, the
// frozen JSON response envelope, and the async job surface.
package httpapi
