// Package message dispatches outbound messages.
//
// It checks that the session is authenticated, canonicalizes the
// destination, renders the message into a domain.Payload and hands it to
// the live transport handle exactly once.
package message
