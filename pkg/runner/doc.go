// Package runner implements the resumable batch run shared by the scrape and
// trait stages.
//
// A run loads the processed-id set from its checkpoint, skips every unit
// already in it, and calls the external service for the rest in input
// order. After each successful call it appends the new results to the
// output file and only then saves the extended checkpoint, so the
// checkpoint never names a unit whose result is not on disk. A crash loses
// at most the call in flight.
//
// AbortOnError stops at the first failed batch and returns the error with
// everything committed so far intact. SkipOnError sends one unit per call,
// retries it, and records it as failed when it keeps failing; the unit is
// tried again by the next run.
//
// Cancellation is cooperative: the token is checked before every call and
// ends the inter-batch delay early, but a call already in flight is allowed
// to finish and, if it succeeds, is committed.
package runner
