// Package capture turns a link into archived artifacts: a screenshot rendered
// by headless Chrome and, for Twitter/X and the big video hosts, the media the
// page embeds.
package capture
