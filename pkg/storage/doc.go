// Package storage provides the flat-file persistence used by every stage.
//
// All writes go through WriteFileAtomic: data lands in a temporary file in
// the target directory, is fsynced, and is renamed over the destination, so a
// crash leaves either the old or the new file, never a torn one.
//
// Accumulator is the append-only result store of the resumable runner. It
// keeps a single JSON array per output file and implements Append as
// load-full, concatenate, write-full:
//
//	acc := storage.NewAccumulator[apify.Profile]("apify-profile-data/profiles.json")
//	total, err := acc.Append(batchResults)
//
// A missing output file loads as an empty list. A corrupt one is reported as
// a parsing error instead of being overwritten.
package storage
