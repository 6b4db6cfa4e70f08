// Package las decodes the binary structures of a LAS 1.3 file carrying
// Point Data Record Format 4 and internally stored full-waveform data.
//
// Responsibilities: the fixed byte layouts (public header, variable length
// record header, point record, waveform packet descriptor), header and VLR
// parsing, point decoding, and a scoped reader that owns the file cursor.
//
// All layouts are little endian as stored on disk. Only version 1.3,
// point format 4 and uncompressed internal waveforms are accepted; anything
// else is rejected while the header is parsed.
package las
