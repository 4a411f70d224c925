package traits

import (
	"encoding/json"
	"strings"

	errs "enricher/pkg/errors"
)

// Section is one nested group of the trait document. Values keep whatever
// JSON type the model produced.
type Section map[string]interface{}

// Traits is the structured record extracted from one profile.
type Traits struct {
	FullName                 string      `json:"full_name"`
	LinkedInURL              string      `json:"linkedin_url"`
	EstimatedAge             interface{} `json:"estimated_age"`
	EducationStages          Section     `json:"education_stages"`
	CareerInsights           Section     `json:"career_insights"`
	CompanyBackground        Section     `json:"company_background"`
	AcceleratorAndPrograms   Section     `json:"accelerator_and_programs"`
	EducationCareerAlignment Section     `json:"education_career_alignment"`
	PersonalBrand            Section     `json:"personal_brand"`
	ResearchAndAcademic      Section     `json:"research_and_academic"`
	InternationalExperience  Section     `json:"international_experience"`
	ConfidenceScore          interface{} `json:"confidence_score"`
}

// UnitID identifies the profile the traits were extracted from.
func (t Traits) UnitID() string { return t.LinkedInURL }

// section returns the named group, or nil.
func (t Traits) section(name string) Section {
	switch name {
	case "education_stages":
		return t.EducationStages
	case "career_insights":
		return t.CareerInsights
	case "company_background":
		return t.CompanyBackground
	case "accelerator_and_programs":
		return t.AcceleratorAndPrograms
	case "education_career_alignment":
		return t.EducationCareerAlignment
	case "personal_brand":
		return t.PersonalBrand
	case "research_and_academic":
		return t.ResearchAndAcademic
	case "international_experience":
		return t.InternationalExperience
	}
	return nil
}

// lookup reads a top-level field or section.key.
func (t Traits) lookup(section, key string) interface{} {
	if section == "" {
		switch key {
		case "full_name":
			return t.FullName
		case "linkedin_url":
			return t.LinkedInURL
		case "estimated_age":
			return t.EstimatedAge
		case "confidence_score":
			return t.ConfidenceScore
		}
		return nil
	}
	return t.section(section)[key]
}

type reply struct {
	FullName                 *string         `json:"full_name"`
	EstimatedAge             interface{}     `json:"estimated_age"`
	EducationStages          json.RawMessage `json:"education_stages"`
	CareerInsights           json.RawMessage `json:"career_insights"`
	CompanyBackground        json.RawMessage `json:"company_background"`
	AcceleratorAndPrograms   json.RawMessage `json:"accelerator_and_programs"`
	EducationCareerAlignment json.RawMessage `json:"education_career_alignment"`
	PersonalBrand            json.RawMessage `json:"personal_brand"`
	ResearchAndAcademic      json.RawMessage `json:"research_and_academic"`
	InternationalExperience  json.RawMessage `json:"international_experience"`
	ConfidenceScore          interface{}     `json:"confidence_score"`
}

// FromReply builds Traits from a model reply for profile. The record is
// always tagged with the profile's own URL; a missing name falls back to the
// profile's fullName and a missing confidence score to "Low". Sections that
// are absent or not objects become empty.
func FromReply(raw json.RawMessage, profile map[string]interface{}) (Traits, error) {
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return Traits{}, errs.Wrap(errs.ErrorTypeMalformed, err, "trait reply does not match the schema")
	}

	t := Traits{
		FullName:                 stringOr(profile["fullName"], "Unknown"),
		LinkedInURL:              ProfileURL(profile),
		EstimatedAge:             r.EstimatedAge,
		EducationStages:          section(r.EducationStages),
		CareerInsights:           section(r.CareerInsights),
		CompanyBackground:        section(r.CompanyBackground),
		AcceleratorAndPrograms:   section(r.AcceleratorAndPrograms),
		EducationCareerAlignment: section(r.EducationCareerAlignment),
		PersonalBrand:            section(r.PersonalBrand),
		ResearchAndAcademic:      section(r.ResearchAndAcademic),
		InternationalExperience:  section(r.InternationalExperience),
		ConfidenceScore:          r.ConfidenceScore,
	}
	if r.FullName != nil && strings.TrimSpace(*r.FullName) != "" {
		t.FullName = *r.FullName
	}
	if t.LinkedInURL == "" {
		t.LinkedInURL = "not found"
	}
	if t.ConfidenceScore == nil {
		t.ConfidenceScore = "Low"
	}
	return t, nil
}

func section(raw json.RawMessage) Section {
	s := Section{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &s)
	}
	if s == nil {
		s = Section{}
	}
	return s
}

// ProfileURL returns the trimmed linkedinUrl of a cleaned profile.
func ProfileURL(profile map[string]interface{}) string {
	s, _ := profile["linkedinUrl"].(string)
	return strings.TrimSpace(s)
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
