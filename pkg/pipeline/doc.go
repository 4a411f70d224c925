/*
Package pipeline wires the enrichment stages to their external services.

The stages run in order, each reading the previous stage's output file:

	extract  Airtable roster -> URL list + URL to record mapping
	scrape   URL list        -> raw profiles (Apify, resumable batches)
	clean    raw profiles    -> cleaned profiles
	traits   cleaned         -> trait records (LLM, resumable per profile)
	update   trait records   -> AI_* fields on the Airtable records

Both the CLI and the HTTP service drive stages through a Pipeline; the
Reporter they pass in receives progress and carries cancellation.
*/
package pipeline
