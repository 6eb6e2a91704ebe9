// Package storage holds artifact store plumbing shared by the local and GCS
// backends.
package storage
