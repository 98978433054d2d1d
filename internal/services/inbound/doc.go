// Package inbound turns transport message batches into MessageReceived
// events.
package inbound
