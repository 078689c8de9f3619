// Package cryptoutil holds the small hashing helpers shared by the
// manifest fingerprint and the CSRF token provider.
package cryptoutil
