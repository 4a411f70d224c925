// Package cleaner reduces raw scraped LinkedIn profiles to the text the
// trait prompt needs.
//
// Cleaning first drops configured keys (media, contact and tracking data)
// at any depth, then projects what is left onto a fixed shape: name,
// headline and about; experiences with their descriptions and, for
// multi-role positions, a roles list; educations; skill titles; and the
// current job fields. Text fields lose links, LinkedIn URNs and media
// fragments. The linkedinUrl is copied verbatim because it identifies the
// profile in later stages.
package cleaner
