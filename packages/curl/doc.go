// Package curl reconstructs a structured request descriptor from a captured
// shell curl invocation, such as DevTools "Copy as cURL (bash)" output.
//
// The parser is deliberately best-effort: flags it does not recognize are
// skipped, never fatal. It only fails when no curl command or no URL can be
// found, or when shell tokenization fails.
package curl
