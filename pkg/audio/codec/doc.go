// ABOUTME: Sample codec package
// ABOUTME: Converts between wire sample formats and canonical float32
// Package codec converts audio samples between the driver's wire formats and
// the canonical float domain used by the pipeline.
//
// Supported wire formats:
//   - Float32: identity copy in both directions
//   - Int16: decode divides by 32768, encode clamps to [-1, 1] and
//     multiplies by 32767, truncating toward zero
//
// Every function converts min(len(dst), len(src)) samples and returns that
// count. A nil or short source leaves the remainder of dst untouched, so the
// caller decides what "no input" sounds like (the pipeline uses silence).
//
// Example:
//
//	n := codec.DecodeInt16(scratch, in)
//	clear(scratch[n:])
//	codec.EncodeInt16(out, scratch)
package codec
