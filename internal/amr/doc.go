// Package amr identifies and demultiplexes AMR narrowband and wideband
// storage-format streams (RFC 4867 section 5).
//
// A stream starts with a magic line, "#!AMR\n" or "#!AMR-WB\n", followed by
// back-to-back speech frames. Each frame begins with a one-byte header whose
// frame-type field selects the payload size from a fixed table; there are no
// length prefixes, so frames can only be located by parsing from the start.
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|P|  FT   |Q|P|P|
//	+-+-+-+-+-+-+-+-+
//
// Sniff detects the stream kind, Extractor exposes the single track, and
// FrameReader pulls frames with their presentation timestamps. Every frame
// is 20ms of audio.
package amr
