// Package httpapi exposes the session facade over HTTP.
//
// Routes are JSON in and out. Errors are reported as {"error": "..."} with
// a status derived from the domain error: missing fields and bad bodies are
// 400, an unauthenticated session is 409, a rejected or failed submission
// is 422 and storage failures are 500. Network trouble never yields a 5xx. When enabled, /ws streams every session event
// to websocket clients.
package httpapi
