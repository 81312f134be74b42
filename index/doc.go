// Package index stores the forward index in a kv.Table and answers the scans
// a planning session issues against it.
//
// Each entry records that a value of a field occurs in a shard for one
// datatype:
//
//	row       = field value
//	family    = field name
//	qualifier = shard + "\x00" + datatype
//	value     = posting (record-id set or bare count)
//
// Scanners implements stream.ScannerFactory on top of one or more such
// tables, folding the postings of a lookup into one summary per shard.
package index
