// Package server implements the HTTP server and handlers of filedrop.
// It wires the routes to the metadata store, the blob store and the
// passphrase generator, and provides lifecycle helpers used by tests and
// the production binary.
package server
