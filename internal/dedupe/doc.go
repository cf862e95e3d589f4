// Package dedupe rejects replayed form submissions. Every rendered form
// carries a nonce; the first submission carrying it is claimed and any
// repeat within the TTL (a double click, a browser retry) is refused.
package dedupe
