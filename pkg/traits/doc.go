// Package traits extracts structured career and education traits from
// cleaned LinkedIn profiles with a language model, and maps them onto the
// AI_* Airtable columns.
//
// A session walks the cleaned profile list once. Each profile is one model
// call; replies that fail or do not parse are retried, then skipped and
// left for the next session. Progress is kept in a checkpoint next to the
// output file, so a stopped session resumes where it left off.
package traits
