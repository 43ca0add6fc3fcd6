// Package transport implements the REON frame envelope and the TCP
// plumbing that carries it.
//
// The transport layer handles:
//   - STX/ETX frame delimiting with a pluggable integrity check
//   - Incremental decoding of fragmented byte streams
//   - Resynchronization after line noise or corrupt frames
//   - A TCP server for device connections and a matching client
//   - Periodic status polling of idle device connections
//
// # Frame Format
//
//	┌─────┬──────────────────────┬───────────┬─────┐
//	│ STX │    ASCII payload     │ integrity │ ETX │
//	│0x02 │  (pkg/protocol text) │  2 bytes  │0x03 │
//	└─────┴──────────────────────┴───────────┴─────┘
//
// The payload is the textual message form produced by pkg/protocol.
// The integrity value is computed over the payload only; the default
// Checksum is XOR8, an XOR of all payload bytes rendered as two
// uppercase hexadecimal digits so the envelope stays printable and the
// integrity bytes can never alias the frame markers.
//
// # Decoding
//
// A Decoder accumulates stream bytes via Push and yields at most one
// frame per Next call. Bytes preceding a start marker are discarded and
// reported as a recoverable warning; frames with a bad integrity value
// or a malformed payload are dropped and the decoder resynchronizes on
// the next start marker. A frame growing past the configured maximum
// size is dropped the same way. The decoder never closes connections;
// repeated integrity errors are the caller's signal to act.
package transport
