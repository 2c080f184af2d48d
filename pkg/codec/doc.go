// Package codec provides the binary record format and compression
// layer used to persist mol2 sub-collections.
//
// Each of a record's three variable-length collections (atoms, bonds,
// substructures) is encoded independently into one compact blob.
//
// # Blob Format
//
// All integers are little-endian; floats are IEEE 754 bit patterns.
//
//	blob  = [count u32] entry*
//	entry = required fields, [ntrail u8], ntrail trailing fields
//	str   = [len u32] bytes
//
// ntrail is the number of trailing positional-optional fields present,
// counted until the first absent one. This is the binary form of the
// prefix-truncation rule shared with the text parser and serializer:
// a field after the first absent one is never written and never read.
//
// # Compression
//
// Blobs are optionally compressed with zstd. Level 0 stores the raw
// encoded bytes; levels above 9 are clamped to 9. Decompression is
// bounded at 100 MiB per blob; a blob decoding past that bound is a
// fatal codec error. This ceiling is a known scaling limit of the
// format, not a tunable.
package codec
