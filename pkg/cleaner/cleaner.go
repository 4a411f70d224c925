package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"
)

// DefaultRemoveFields are media, contact and tracking keys that never reach
// the trait prompt.
var DefaultRemoveFields = []string{
	"profilePic", "profilePicHighQuality", "profilePicAllDimensions",
	"interests", "languages", "recommendations", "updates",
	"connections", "followers", "email", "mobileNumber",
	"addressWithCountry", "addressWithoutCountry",
	"publicIdentifier", "openConnection", "urn",
	"licenseAndCertificates", "honorsAndAwards", "patents",
	"courses", "testScores", "organizations", "volunteerCauses",
	"verifications", "promos", "highlights", "publications",
}

// passthroughFields describe the current position and are kept verbatim.
var passthroughFields = []string{"jobTitle", "companyName", "companyIndustry", "currentJobDuration"}

// Options configures a Cleaner.
type Options struct {
	// RemoveFields are dropped at any depth before projection. Nil uses
	// DefaultRemoveFields.
	RemoveFields []string
	// KeepFields are extra top-level keys copied through after removal.
	KeepFields []string
}

// Cleaner projects raw scraped profiles onto the fields trait extraction
// reads.
type Cleaner struct {
	remove map[string]struct{}
	keep   []string
	logger logger.Logger
}

// New creates a cleaner.
func New(opts Options, log logger.Logger) *Cleaner {
	fields := opts.RemoveFields
	if fields == nil {
		fields = DefaultRemoveFields
	}
	remove := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		remove[f] = struct{}{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Cleaner{remove: remove, keep: opts.KeepFields, logger: log.WithField("stage", "clean")}
}

// CleanProfile returns the cleaned projection of one raw profile. The
// linkedinUrl value is copied untouched.
func (c *Cleaner) CleanProfile(raw map[string]interface{}) map[string]interface{} {
	profile, _ := RemoveFields(raw, c.remove).(map[string]interface{})
	out := make(map[string]interface{})

	for _, f := range []string{"fullName", "headline"} {
		if v, ok := profile[f]; ok {
			out[f] = cleanValue(v)
		}
	}
	if v, ok := raw["linkedinUrl"]; ok {
		out["linkedinUrl"] = v
	}
	if v, ok := profile["about"]; ok {
		out["about"] = cleanValue(v)
	}

	if items, ok := profile["experiences"].([]interface{}); ok {
		experiences := []interface{}{}
		for _, item := range items {
			if exp := cleanExperience(asMap(item)); len(exp) > 0 {
				experiences = append(experiences, exp)
			}
		}
		out["experiences"] = experiences
	}

	if items, ok := profile["educations"].([]interface{}); ok {
		educations := []interface{}{}
		for _, item := range items {
			if edu := cleanEducation(asMap(item)); len(edu) > 0 {
				educations = append(educations, edu)
			}
		}
		out["educations"] = educations
	}

	if items, ok := profile["skills"].([]interface{}); ok {
		skills := []interface{}{}
		for _, item := range items {
			if title, ok := asMap(item)["title"]; ok {
				skills = append(skills, title)
			}
		}
		out["skills"] = skills
	}

	for _, fields := range [][]string{passthroughFields, c.keep} {
		for _, f := range fields {
			if v, ok := profile[f]; ok {
				out[f] = v
			}
		}
	}
	return out
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// descriptions joins the cleaned text components of a description list.
func descriptions(v interface{}) string {
	items, _ := v.([]interface{})
	var parts []string
	for _, item := range items {
		d := asMap(item)
		if d == nil || d["type"] != "textComponent" {
			continue
		}
		if text, _ := d["text"].(string); text != "" {
			parts = append(parts, CleanText(text))
		}
	}
	return strings.Join(parts, " ")
}

func cleanExperience(exp map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if exp == nil {
		return out
	}
	for _, f := range []string{"title", "subtitle"} {
		if v, ok := exp[f]; ok {
			out[f] = cleanValue(v)
		}
	}
	for _, f := range []string{"caption", "metadata"} {
		if v, ok := exp[f]; ok {
			out[f] = v
		}
	}

	subs, hasSubs := exp["subComponents"].([]interface{})
	if hasSubs {
		var parts []string
		for _, s := range subs {
			if d := descriptions(asMap(s)["description"]); d != "" {
				parts = append(parts, d)
			}
		}
		if len(parts) > 0 {
			out["description"] = strings.Join(parts, " ")
		}
	}

	if breakdown, _ := exp["breakdown"].(bool); breakdown && hasSubs {
		out["breakdown"] = true
		roles := []interface{}{}
		for _, s := range subs {
			sub := asMap(s)
			title, ok := sub["title"]
			if !ok {
				continue
			}
			role := map[string]interface{}{
				"title":    cleanValue(title),
				"caption":  valueOr(sub, "caption", ""),
				"metadata": valueOr(sub, "metadata", ""),
			}
			if d := descriptions(sub["description"]); d != "" {
				role["description"] = d
			}
			roles = append(roles, role)
		}
		out["roles"] = roles
	}
	return out
}

func cleanEducation(edu map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range []string{"title", "subtitle", "caption"} {
		if v, ok := edu[f]; ok {
			out[f] = cleanValue(v)
		}
	}
	return out
}

func valueOr(m map[string]interface{}, key string, def interface{}) interface{} {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// Result summarises a cleaning run.
type Result struct {
	TotalProfiles   int    `json:"total_profiles"`
	ProfilesWithURL int    `json:"profiles_with_url"`
	InputFile       string `json:"input_file"`
	OutputFile      string `json:"output_file"`
}

// CleanFile cleans every profile in input and writes the list to output.
func (c *Cleaner) CleanFile(ctx context.Context, input, output string, onProgress func(current, total int, message string)) (*Result, error) {
	progress := func(cur, total int, msg string) {
		if onProgress != nil {
			onProgress(cur, total, msg)
		}
	}

	progress(0, 0, fmt.Sprintf("Loading profiles from %s", input))
	var raw []map[string]interface{}
	if err := storage.ReadJSON(input, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Config("input file %s not found", input)
		}
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read "+input)
	}

	cleaned := make([]map[string]interface{}, 0, len(raw))
	withURL := 0
	for _, p := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cp := c.CleanProfile(p)
		if u, _ := cp["linkedinUrl"].(string); strings.TrimSpace(u) != "" {
			withURL++
		}
		cleaned = append(cleaned, cp)
	}

	progress(len(cleaned), len(cleaned), fmt.Sprintf("Processed %d profiles, saving to %s", len(cleaned), output))
	if err := storage.WriteJSON(output, cleaned); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to save "+output)
	}

	if withURL < len(cleaned) {
		c.logger.WarnWithFields("Some profiles have no linkedinUrl and will be skipped by trait extraction", map[string]interface{}{
			"missing": len(cleaned) - withURL,
		})
	}
	c.logger.InfoWithFields("Cleaning completed", map[string]interface{}{
		"profiles": len(cleaned),
		"output":   output,
	})
	return &Result{TotalProfiles: len(cleaned), ProfilesWithURL: withURL, InputFile: input, OutputFile: output}, nil
}
