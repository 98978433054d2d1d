// Package commands defines the wagate CLI, a client for a running gateway.
//
// Commands
//
//   - status         Print the connection status
//   - qr             Print the pending pairing code
//   - send text      Send a text message
//   - send image     Send an image by URL
//   - send file      Send a document by URL
//   - send link      Send a link with a preview card
//   - logout         Log the session out and wipe its credentials
//   - watch          Stream status, QR and message events
//
// The root command builds one API client from --server and --api-key
// before any subcommand runs.
package commands
