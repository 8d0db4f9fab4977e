// Package guard decides whether an outbound URL is safe for the server to
// contact. It blocks non-HTTP schemes, local hostnames, disallowed ports, and
// any target that is or resolves to a private or reserved address, which keeps
// the dispatcher from being used as a proxy into internal networks.
package guard
