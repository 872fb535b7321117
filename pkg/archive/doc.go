// Package archive unpacks distribution archives into a package tree.
//
// Wheels are zip files and sdists are gzipped tarballs (occasionally zip
// files). [Open] picks the decoder from the file's magic bytes and returns a
// [Reader] over its members; [Extract] writes them below a target directory
// and returns a [Manifest] of what it wrote. Sdists carry a single
// top-level directory that Extract strips; wheels are written as stored.
// Zip sdists are marked with [Sdist].
//
// Extraction is the security boundary for downloaded content:
//
//   - a member whose path, or whose link target, resolves outside the
//     target directory fails the whole archive with UNSAFE_ARCHIVE_ENTRY
//     and a [*UnsafeEntryError] cause
//   - decompressed output is capped by [Limits]; the cap is enforced on
//     the bytes actually produced, not on sizes the archive declares
//   - links and special files are never created
//
// Tar decoding uses the standard library; gzip and zip decoding use
// github.com/klauspost/compress.
package archive
