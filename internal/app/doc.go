// Package app wires the gateway together from a config.Config.
//
// NewWire builds stores, the transport, services and the HTTP API. App runs
// them until its context is cancelled and then shuts them down in reverse
// order.
package app
