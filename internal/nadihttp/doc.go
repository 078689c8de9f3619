// Package nadihttp connects the render dispatcher to net/http: it adapts
// *http.Request, writes JSON payloads, and executes page templates for
// full-page renders.
package nadihttp
