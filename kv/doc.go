// Package kv is a small sorted key-value table in the shape of a wide-column
// store: entries are ordered by row, column family and column qualifier.
//
// A Table serves scan Sessions that read a key Range in batches, optionally
// prefetching the next batch in the background, and pass entries through a
// stack of Iterators before handing them out. Tables persist to a
// blobstore.BlobStore as block-compressed snapshots (see Save and Load).
package kv
