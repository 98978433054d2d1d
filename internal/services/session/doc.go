// Package session is the facade over the session lifecycle.
//
// HTTP handlers talk to Service only. It checks required parameters and
// forwards to the connection supervisor, the message dispatcher and the
// event bus.
package session
