package traits

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enricher/pkg/checkpoint"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"
)

// fakeModel answers with a reply keyed on the profile URL found in the
// document. Unknown profiles get a malformed-reply error.
type fakeModel struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
}

func (f *fakeModel) Complete(ctx context.Context, system, doc string) (json.RawMessage, error) {
	var p map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, err
	}
	u := ProfileURL(p)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u)
	reply, ok := f.replies[u]
	if !ok {
		return nil, errs.New(errs.ErrorTypeMalformed, "no JSON object in reply")
	}
	return json.RawMessage(reply), nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const replyA = `{
	"full_name": "Ada Lovelace",
	"estimated_age": "36",
	"education_stages": {"undergraduate": "Home schooled - Mathematics - 1833", "masters": "-1", "phd": null, "other_education": []},
	"career_insights": {"avg_tenure_per_role": 2.5, "job_hopper": false, "total_experience_count": 3, "has_leadership_experience": true,
		"has_previous_c_suite_experience": "false", "founder_experience_count": 0, "industry_switches": -1, "career_summary": "Analyst",
		"years_out_of_education": "-1", "years_in_industry": 12, "total_years_experience": 12.5},
	"company_background": {"notable_companies": ["Analytical Engine Co", "-1"], "startup_companies": []},
	"confidence_score": "high"
}`

func writeProfiles(t *testing.T, dir string, profiles ...map[string]interface{}) string {
	t.Helper()
	path := filepath.Join(dir, "cleaned.json")
	require.NoError(t, storage.WriteJSON(path, profiles))
	return path
}

func profile(url, name string) map[string]interface{} {
	p := map[string]interface{}{"fullName": name}
	if url != "" {
		p["linkedinUrl"] = url
	}
	return p
}

func TestFromReplyFallbacks(t *testing.T) {
	tr, err := FromReply(json.RawMessage(`{"linkedin_url": "https://other/"}`), profile(" https://linkedin.com/in/a/ ", "Ada"))
	require.NoError(t, err)

	assert.Equal(t, "Ada", tr.FullName)
	assert.Equal(t, "https://linkedin.com/in/a/", tr.LinkedInURL, "unit URL wins over the model's")
	assert.Equal(t, "Low", tr.ConfidenceScore)
	assert.NotNil(t, tr.CareerInsights)

	tr, err = FromReply(json.RawMessage(`{}`), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", tr.FullName)
	assert.Equal(t, "not found", tr.LinkedInURL)

	_, err = FromReply(json.RawMessage(`{"full_name": 7}`), profile("u", "x"))
	assert.True(t, errs.Is(err, errs.ErrorTypeMalformed))
}

func TestTraitsJSONKeys(t *testing.T) {
	tr, err := FromReply(json.RawMessage(replyA), profile("https://linkedin.com/in/a/", "Ada"))
	require.NoError(t, err)

	data, err := json.Marshal(tr)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"full_name", "linkedin_url", "estimated_age", "education_stages", "career_insights",
		"company_background", "accelerator_and_programs", "education_career_alignment", "personal_brand",
		"research_and_academic", "international_experience", "confidence_score"} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, map[string]interface{}{}, m["personal_brand"])
}

func TestFormat(t *testing.T) {
	tr, err := FromReply(json.RawMessage(replyA), profile("https://linkedin.com/in/a/", "Ada"))
	require.NoError(t, err)

	fields := Format(tr)
	assert.Equal(t, "Ada Lovelace", fields["AI_Full_Name"])
	assert.Equal(t, "36", fields["AI_Estimated_Age"])
	assert.Equal(t, "High", fields["AI_Confidence_Score"])
	assert.Equal(t, "Home schooled - Mathematics - 1833", fields["AI_Undergraduate"])
	assert.Equal(t, 2.5, fields["AI_Avg_Tenure_Per_Role"])
	assert.Equal(t, 12.5, fields["AI_Total_Years_Experience"])
	assert.Equal(t, false, fields["AI_Job_Hopper"])
	assert.Equal(t, true, fields["AI_Has_Leadership_Experience"])
	assert.Equal(t, false, fields["AI_Has_C_Suite_Experience"])
	assert.Equal(t, float64(0), fields["AI_Founder_Experience_Count"])
	assert.Equal(t, "Analytical Engine Co", fields["AI_Notable_Companies"])

	for _, absent := range []string{"AI_Masters", "AI_PhD", "AI_Other_Education", "AI_Industry_Switches",
		"AI_Years_Out_Of_Education", "AI_Startup_Companies", "AI_Global_Companies"} {
		assert.NotContains(t, fields, absent)
	}
}

func TestFormatStringAgeFromNumber(t *testing.T) {
	fields := Format(Traits{EstimatedAge: float64(31), ConfidenceScore: "certain"})
	assert.Equal(t, "31", fields["AI_Estimated_Age"])
	assert.NotContains(t, fields, "AI_Confidence_Score")
}

func TestFieldSpecsCoverEveryColumn(t *testing.T) {
	specs := FieldSpecs()
	require.Len(t, specs, len(Columns))

	byName := map[string]string{}
	for _, s := range specs {
		assert.True(t, strings.HasPrefix(s.Name, "AI_"), s.Name)
		byName[s.Name] = s.Type
	}
	assert.Equal(t, "singleSelect", byName["AI_Confidence_Score"])
	assert.Equal(t, "number", byName["AI_Avg_Tenure_Per_Role"])
	assert.Equal(t, "checkbox", byName["AI_Global_Companies"])
	assert.Equal(t, "singleLineText", byName["AI_Studies_Field"])
	assert.Equal(t, "multilineText", byName["AI_Countries_Worked"])

	assert.Equal(t, map[string]interface{}{"precision": 2}, specs[7].Options)
}

func TestRunSkipsFailuresAndResumes(t *testing.T) {
	dir := t.TempDir()
	in := writeProfiles(t, dir,
		profile("https://linkedin.com/in/a/", "Ada"),
		profile("", "No URL"),
		profile("https://linkedin.com/in/b/", "Bob"),
	)
	out := filepath.Join(dir, "traits.json")
	model := &fakeModel{replies: map[string]string{"https://linkedin.com/in/a/": replyA}}

	log := logger.NewTestLogger()
	res, err := New(model, Options{InputFile: in, OutputFile: out, MaxProfiles: -1, MaxAttempts: 2, BackoffBase: 1}, log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalProfiles)
	assert.Equal(t, 1, res.SkippedNoURL)
	assert.Equal(t, 1, res.NewProfiles)
	assert.Equal(t, 1, res.FailedProfiles)
	assert.Equal(t, 1, res.RemainingProfiles)
	assert.Equal(t, 3, model.callCount(), "the failing profile is retried once")
	assert.True(t, log.HasMessage("Skipping profile without linkedinUrl"))

	// Second session only touches the profile that failed.
	model.replies["https://linkedin.com/in/b/"] = `{"full_name": "Bob"}`
	res, err = New(model, Options{InputFile: in, OutputFile: out, MaxAttempts: 1}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewProfiles)
	assert.Equal(t, 2, res.ProcessedProfiles)
	assert.Equal(t, 0, res.RemainingProfiles)
	assert.Equal(t, 4, model.callCount())

	saved, err := LoadTraits(out)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Ada Lovelace", saved[0].FullName)
	assert.Equal(t, "Bob", saved[1].FullName)
}

func TestRunMaxProfiles(t *testing.T) {
	dir := t.TempDir()
	in := writeProfiles(t, dir, profile("https://linkedin.com/in/a/", "A"), profile("https://linkedin.com/in/b/", "B"))
	model := &fakeModel{replies: map[string]string{
		"https://linkedin.com/in/a/": `{}`,
		"https://linkedin.com/in/b/": `{}`,
	}}

	res, err := New(model, Options{InputFile: in, OutputFile: filepath.Join(dir, "t.json"), MaxProfiles: 1}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewProfiles)
	assert.True(t, res.LimitReached)
	assert.Equal(t, 1, res.RemainingProfiles)
}

func TestRunForceBacksUpAndReextracts(t *testing.T) {
	dir := t.TempDir()
	in := writeProfiles(t, dir, profile("https://linkedin.com/in/a/", "A"))
	out := filepath.Join(dir, "t.json")
	model := &fakeModel{replies: map[string]string{"https://linkedin.com/in/a/": `{"full_name": "First"}`}}

	_, err := New(model, Options{InputFile: in, OutputFile: out}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	model.replies["https://linkedin.com/in/a/"] = `{"full_name": "Second"}`
	res, err := New(model, Options{InputFile: in, OutputFile: out, Force: true}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewProfiles)
	assert.True(t, res.ForceReextraction)

	saved, err := LoadTraits(out)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Second", saved[0].FullName)

	backups, err := filepath.Glob(filepath.Join(dir, "*.bak"))
	require.NoError(t, err)
	assert.Len(t, backups, 2, "checkpoint and output are both backed up")
}

func TestRunSeedsCheckpointFromExistingOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeProfiles(t, dir, profile("https://linkedin.com/in/a/", "A"))
	out := filepath.Join(dir, "t.json")
	require.NoError(t, storage.WriteJSON(out, []Traits{{FullName: "Old", LinkedInURL: "https://linkedin.com/in/a/"}}))

	model := &fakeModel{replies: map[string]string{}}
	res, err := New(model, Options{InputFile: in, OutputFile: out}, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, model.callCount())
	assert.Equal(t, 1, res.ProcessedProfiles)
}

func TestRunMissingInput(t *testing.T) {
	_, err := New(&fakeModel{}, Options{InputFile: filepath.Join(t.TempDir(), "nope.json"), OutputFile: "x"}, logger.NewNopLogger()).Run(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
}

func TestCheckProgress(t *testing.T) {
	dir := t.TempDir()
	in := writeProfiles(t, dir,
		profile("https://linkedin.com/in/a/", "A"),
		profile("https://linkedin.com/in/b/", "B"),
		profile("https://linkedin.com/in/c/", "C"),
		profile("", "none"),
	)
	out := filepath.Join(dir, "t.json")
	require.NoError(t, storage.WriteJSON(out, []Traits{{LinkedInURL: "https://linkedin.com/in/a/"}}))

	stats, err := CheckProgress(in, out, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalProfiles)
	assert.Equal(t, 3, stats.ValidProfilesWithURL)
	assert.Equal(t, 1, stats.ProcessedProfiles)
	assert.Equal(t, 2, stats.RemainingProfiles)
	assert.Equal(t, 33.3, stats.CompletionPercentage)
	assert.Equal(t, []string{"https://linkedin.com/in/a/"}, stats.ProcessedURLs)
	assert.False(t, stats.Checkpoint.Exists)

	store := checkpoint.NewStore(checkpoint.PathFor(out), logger.NewNopLogger())
	require.NoError(t, store.Save(checkpoint.NewSet("https://linkedin.com/in/a/", "https://linkedin.com/in/b/")))
	stats, err = CheckProgress(in, out, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ProcessedProfiles)
	assert.True(t, stats.Checkpoint.Exists)
	assert.Equal(t, 2, stats.Checkpoint.ProcessedIDs)
	assert.Equal(t, checkpoint.PathFor(out), stats.Checkpoint.Path)
	assert.NotEmpty(t, stats.Checkpoint.LastUpdated)
}
