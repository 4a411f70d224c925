package pipeline

import "time"

// ExtractRequest overrides the airtable filters for one extraction.
type ExtractRequest struct {
	LinkedInFields []string `json:"linkedin_fields,omitempty"`
	EventFilter    *string  `json:"event_filter,omitempty"`
	Top100Filter   *bool    `json:"top_100_filter,omitempty"`
	OutputPrefix   *string  `json:"output_prefix,omitempty"`
}

// ScrapeRequest overrides the scrape inputs. Zero values use configuration.
type ScrapeRequest struct {
	URLsFile    string `json:"urls_file,omitempty"`
	OutputFile  string `json:"output_file,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	TestMode    *bool  `json:"test_mode,omitempty"`
	TestNumURLs int    `json:"test_num_urls,omitempty"`
}

// CleanRequest overrides the cleaner's files.
type CleanRequest struct {
	InputFile  string `json:"input_file,omitempty"`
	OutputFile string `json:"output_file,omitempty"`
}

// TraitsRequest overrides a trait extraction session.
type TraitsRequest struct {
	InputFile         string   `json:"input_file,omitempty"`
	OutputFile        string   `json:"output_file,omitempty"`
	MaxProfiles       *int     `json:"max_profiles,omitempty"`
	ForceReextraction *bool    `json:"force_reextraction,omitempty"`
	DelayBetweenCalls *float64 `json:"delay_between_calls,omitempty"`
}

// UpdateRequest overrides the write-back files and pacing.
type UpdateRequest struct {
	TraitsFile          string   `json:"traits_file,omitempty"`
	URLMappingFile      string   `json:"url_mapping_file,omitempty"`
	DelayBetweenUpdates *float64 `json:"delay_between_updates,omitempty"`
}

// FieldsRequest overrides field creation pacing.
type FieldsRequest struct {
	DelayBetweenFields *float64 `json:"delay_between_fields,omitempty"`
}

// seconds converts an optional seconds value, falling back to def.
func seconds(v *float64, def time.Duration) time.Duration {
	if v == nil || *v < 0 {
		return def
	}
	return time.Duration(*v * float64(time.Second))
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
