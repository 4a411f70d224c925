// Package airtable is a small client for the Airtable REST and Meta APIs,
// covering what the enrichment pipeline needs: paged table scans, single
// record updates and field creation.
package airtable
