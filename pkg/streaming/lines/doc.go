// Package lines splits a chunk stream into '\n'-terminated lines.
//
// Chunk boundaries fall anywhere, including in the middle of a line or right
// after a terminator. The Parser carries the unterminated tail of each chunk
// into the next one, so the lines it returns are the same for every chunk
// size, and concatenating them (with terminators put back where they were
// stripped) reproduces the stream byte for byte.
//
// Only the byte 0x0A ends a line. A '\r' before it is part of the line.
package lines
