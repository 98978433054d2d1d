// Package client is an HTTP client for the gateway API.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Non-2xx responses are returned as *APIError carrying the
// status and the server's error message.
package client
