// Package speechcache stores synthesized utterances so that frequently
// spoken phrases can be replayed without a network round trip.
//
// A cache is two parts:
//
//   - an [Index] mapping a text fingerprint to an [Entry]; [MemoryIndex]
//     keeps it in a map, [BadgerIndex] persists msgpack-encoded entries in
//     BadgerDB;
//   - a [FileStore] holding the audio artifacts; [Local] writes under a
//     directory, [S3Store] writes to any S3-compatible bucket.
//
// Texts are keyed by [Fingerprint], which ignores case, whitespace and
// punctuation, so "Hello, world!" and "hello world" share one entry.
//
// Cache failures are never fatal to playback: [Cache.Lookup] returns
// [ErrMiss] for absent entries and an error wrapping [ErrCache] for backend
// failures, which callers treat as a miss.
package speechcache
