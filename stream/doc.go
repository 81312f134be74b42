// Package stream implements index streams: lazy, key-ordered sequences of
// per-shard or per-day match summaries, and the algebra that combines them.
//
// Keys are days (yyyyMMdd) or shards (yyyyMMdd_N). A day key stands for every
// shard of that day, so merges treat a day as covering its shards.
//
// Every stream carries a Context classifying how well the index answers the
// subtree it represents. Leaves start INITIALIZED and settle on their first
// pull; Intersection and Union derive their context from their children.
package stream
