// Package blobstore abstracts where index snapshots live.
//
// A snapshot is written once through Create or Put and read back through
// Open. Readers only need random access (ReadAt) or a bounded stream
// (ReadRange), which lets cloud backends serve ranged GETs instead of
// downloading whole objects.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, used by tests
//   - LocalStore: local filesystem, reads through mmap
//   - s3.Store: Amazon S3 with ranged reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// All implementations are safe for concurrent use.
package blobstore
