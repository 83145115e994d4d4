// Package envelope implements the portable .slayer project file format: a
// versioned JSON wrapper, optionally gzip-compressed once the serialized
// size crosses a threshold.
//
// Encoding is a pure transform. The live project is deep-copied, slots that
// are inactive or empty are dropped, and embedded image data URIs are
// rewritten into compact canvas records; the copy is then marshalled to
// UTF-8 JSON. Decoding tries the JSON fast path first and falls back to
// streaming decompression, so callers never need to know whether a given
// file was compressed. Legacy suite-era envelopes are accepted on load and
// normalized into the modern in-memory shape.
package envelope
