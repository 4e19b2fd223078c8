// Package pcm provides types and utilities for working with 16-bit mono PCM
// audio data.
//
// Key types and helpers:
//   - Format: sample rate, channels and bit depth with byte/duration math
//   - Writer: chunk sink, with WriteFunc and IOWriter adapters
//   - Copy: stream a reader to a Writer in fixed-duration chunks
//   - Scale: apply a percentage gain to little-endian samples in place
//
// Example usage:
//
//	format, _ := pcm.FormatForRate(24000)
//
//	// Calculate bytes needed for 20ms of audio
//	bytes := format.BytesInDuration(20 * time.Millisecond)
//
//	// Halve the volume of a chunk
//	pcm.Scale(chunk, 50)
//
//	// Append 2s of silence
//	format.WriteSilence(w, 2*time.Second)
package pcm
