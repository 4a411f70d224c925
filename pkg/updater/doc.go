// Package updater writes extracted traits back onto Airtable records and
// creates the AI_* columns they are written into.
package updater
