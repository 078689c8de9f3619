// Package render decides how a Nadi page is answered.
//
// Programmatic requests (X-Requested-With: XMLHttpRequest) get a
// [JSONPayload] the client router swaps in without a reload. Everything
// else gets an [HTMLContext] for the page template: serialized props, the
// asset tags from the build manifest, and, when SSR is enabled and not
// opted out of, server-rendered markup. If the SSR service is unavailable
// the markup is left empty and the client renders the page itself.
//
// A [Dispatcher] is built once at startup and shared by every handler.
package render
