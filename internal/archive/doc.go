// Package archive defines the job and message types shared by the job source,
// the dispatcher, and the capture workers.
package archive
