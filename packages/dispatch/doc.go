// Package dispatch executes a request descriptor against an arbitrary
// user-supplied URL. Every dispatch is validated by the SSRF guard before the
// call and again on the final post-redirect URL, response bodies are read with
// a hard in-memory cap, and the raw bytes are handed to the response cache so
// a later download call can retrieve them by identifier.
package dispatch
