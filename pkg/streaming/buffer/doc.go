// Package buffer defines the chunk abstraction moved through streams.
//
// A chunk is any Buffer: an ordered container whose Len is measured in the
// stream's unit. Slice counts elements, Bytes counts bytes and Text counts
// runes. DrainTo is the one primitive the stream engines use to split and
// merge chunks, and it never loses or duplicates a unit.
package buffer
