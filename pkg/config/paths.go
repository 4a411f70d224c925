package config

import (
	"fmt"
	"path/filepath"
)

// URLMappingFile maps each profile URL to its Airtable record id.
func (p PathsConfig) URLMappingFile() string {
	return filepath.Join(p.ExtractionDir, p.Prefix+"airtable_url_mapping.json")
}

// URLsFile is the deduplicated URL list handed to the scraper.
func (p PathsConfig) URLsFile() string {
	return filepath.Join(p.ExtractionDir, p.Prefix+"linkedin_urls_for_apify.json")
}

// ExtractionResultsFile holds the complete extraction report.
func (p PathsConfig) ExtractionResultsFile() string {
	return filepath.Join(p.ExtractionDir, p.Prefix+"airtable_extraction_results.json")
}

// ProfilesFile holds the raw scraped profiles.
func (p PathsConfig) ProfilesFile() string {
	return filepath.Join(p.ProfilesDir, p.Prefix+"linkedin_profile_data.json")
}

// TestProfilesFile keeps test-mode scrapes apart from the real output.
func (p PathsConfig) TestProfilesFile(numURLs int) string {
	return filepath.Join(p.ProfilesDir, fmt.Sprintf("test_linkedin_profiles_%d_urls.json", numURLs))
}

// CleanedFile holds the noise-stripped profiles.
func (p PathsConfig) CleanedFile() string {
	return filepath.Join(p.CleanedDir, p.Prefix+"cleaned_linkedin_data.json")
}

// TraitsFile holds the extracted trait records.
func (p PathsConfig) TraitsFile() string {
	return filepath.Join(p.TraitsDir, p.Prefix+"_comprehensive_traits.json")
}
