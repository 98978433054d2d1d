// Package whatsapp implements the session transport on top of whatsmeow.
//
// Device keys live in whatsmeow's SQL store (sqlite3 or postgres). The
// session identity only records which device to load. Each Open builds a
// fresh whatsmeow client with auto-reconnect disabled; reconnection is the
// connection supervisor's job.
package whatsapp
