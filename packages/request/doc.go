// Package request defines the normalized request and response shapes shared by
// the curl importer, the dispatcher, and the HTTP API, plus the small text
// formats (key=value lines, header lines, ordered query strings) the UI speaks.
package request
