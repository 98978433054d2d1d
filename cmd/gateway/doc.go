// Command gateway serves the messaging HTTP API.
//
// Usage:
//
//	gateway [--config wagate.toml] [--listen 127.0.0.1:3000]
//
// Settings come from the TOML file, then WAGATE_* environment variables,
// then flags. SIGINT or SIGTERM closes the connection without logging out;
// stored credentials are reused on the next start.
package main
