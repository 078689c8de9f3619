// Package ratelimit is per-IP token bucket middleware for the public
// listener.
//
// It is in-memory and per instance: it blunts a single client hammering
// full-page renders (each of which may cost an SSR call) but does nothing
// against distributed traffic. Upstream WAF/CDN limits still apply.
package ratelimit
