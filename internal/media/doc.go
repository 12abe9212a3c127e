// Package media provides the small amount of plumbing shared by extractors:
// a typed key/value MetaData container and a fixed-size pool of reusable
// byte buffers.
//
// A BufferGroup hands out Buffers without blocking. A Buffer returns to its
// group when Released, so a group with a single buffer enforces that at most
// one frame is outstanding at a time.
package media
