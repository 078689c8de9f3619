// Package manifest reads the bundler's build manifest: a JSON object mapping
// source module ids to the files the build emitted for them.
//
// Entry order follows the document, so tag output is stable for a given
// build. [Load] and [Fingerprint] never fail; a missing or unparsable
// manifest is an empty one, and an unreadable one fingerprints as "dev".
package manifest
