// Package stores provides the run journal for confpatch.
// Each patch run is recorded in SQLite with its outcome, checksums and
// error, so provisioning history can be inspected after the fact.
package stores
