// Package app wires configuration, telemetry, the upload session store and
// the analytics services into a chi router and an http.Server.
//
// NewApplication builds everything without listening. Start opens the
// listener and the session sweeper, Stop drains requests and releases the
// store and telemetry providers, and Run ties both to SIGINT and SIGTERM.
// Errors are returned to the caller; the package never exits the process.
package app
