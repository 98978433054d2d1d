// Package store provides file-based persistence for the gateway's
// credential bundle.
//
// CredentialFileStore keeps one file per session id under the configured
// data directory. Writes go to a synced temp file that is renamed over the
// target, so a crash leaves either the old or the new bundle on disk, never
// a torn one. A passphrase, when configured, seals the file with an
// scrypt-derived chacha20poly1305 key.
package store
