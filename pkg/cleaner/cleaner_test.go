package cleaner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawProfile = `{
  "fullName": "  Ada   Lovelace ",
  "headline": "Founder https://ada.dev | Math",
  "linkedinUrl": "https://www.linkedin.com/in/ada/",
  "about": "Building engines. urn:li:activity:123 See   more",
  "profilePic": "https://media.licdn.com/x.jpg",
  "email": "ada@example.com",
  "jobTitle": "CEO",
  "companyName": "Engines Ltd",
  "experiences": [
    {
      "title": "CEO",
      "subtitle": "Engines Ltd · Full-time",
      "caption": "2020 - Present · 5 yrs",
      "metadata": "London",
      "logo": "https://media.licdn.com/logo.png",
      "subComponents": [
        {"description": [
          {"type": "textComponent", "text": "Led a team of 10. https://engines.example"},
          {"type": "mediaComponent", "thumbnail": "https://x/y.png"}
        ]}
      ]
    },
    {
      "title": "Engineering",
      "breakdown": true,
      "subComponents": [
        {"title": "Lead Engineer", "caption": "2018 - 2020", "description": [{"type": "textComponent", "text": "Shipped v2"}]},
        {"title": "Engineer"},
        {"description": [{"type": "textComponent", "text": "orphan"}]}
      ]
    },
    {"logo": "https://media.licdn.com/empty.png"}
  ],
  "educations": [
    {"title": "University of London", "subtitle": "BSc Mathematics", "caption": "1832 - 1835", "logo": "x"},
    {"logo": "only media"}
  ],
  "skills": [{"title": "Mathematics"}, {"name": "untitled"}, {"title": "Engines"}]
}`

func parse(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Founder | Math", CleanText("Founder https://ada.dev | Math"))
	assert.Equal(t, "a b", CleanText("a urn:li:fsd_profile:ACoAA b"))
	assert.Equal(t, "before after", CleanText(`before "type": "mediaComponent", "url": "x"} after`))
	assert.Equal(t, "x y", CleanText(`x "thumbnail": "abc" y`))
	assert.Equal(t, "spaced out", CleanText("  spaced \n\t out  "))
	assert.Equal(t, "", CleanText("HTTPS://ONLY.LINK"))
}

func TestCleanProfile(t *testing.T) {
	c := New(Options{}, logger.NewTestLogger())
	out := c.CleanProfile(parse(t, rawProfile))

	assert.Equal(t, "Ada Lovelace", out["fullName"])
	assert.Equal(t, "Founder | Math", out["headline"])
	assert.Equal(t, "https://www.linkedin.com/in/ada/", out["linkedinUrl"])
	assert.Equal(t, "Building engines. See more", out["about"])
	assert.Equal(t, "CEO", out["jobTitle"])
	assert.Equal(t, "Engines Ltd", out["companyName"])
	assert.NotContains(t, out, "profilePic")
	assert.NotContains(t, out, "email")

	exps := out["experiences"].([]interface{})
	require.Len(t, exps, 2, "experience with nothing to keep is dropped")

	first := exps[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"title":       "CEO",
		"subtitle":    "Engines Ltd · Full-time",
		"caption":     "2020 - Present · 5 yrs",
		"metadata":    "London",
		"description": "Led a team of 10.",
	}, first)

	second := exps[1].(map[string]interface{})
	assert.Equal(t, true, second["breakdown"])
	assert.Equal(t, "Shipped v2 orphan", second["description"])
	roles := second["roles"].([]interface{})
	require.Len(t, roles, 2)
	assert.Equal(t, map[string]interface{}{
		"title":       "Lead Engineer",
		"caption":     "2018 - 2020",
		"metadata":    "",
		"description": "Shipped v2",
	}, roles[0])
	assert.Equal(t, map[string]interface{}{"title": "Engineer", "caption": "", "metadata": ""}, roles[1])

	edus := out["educations"].([]interface{})
	require.Len(t, edus, 1)
	assert.Equal(t, map[string]interface{}{
		"title": "University of London", "subtitle": "BSc Mathematics", "caption": "1832 - 1835",
	}, edus[0])

	assert.Equal(t, []interface{}{"Mathematics", "Engines"}, out["skills"])
}

func TestCleanProfileKeepsURLWhenRemovalListNamesIt(t *testing.T) {
	c := New(Options{RemoveFields: []string{"linkedinUrl", "headline"}}, logger.NewTestLogger())
	out := c.CleanProfile(parse(t, rawProfile))
	assert.Equal(t, "https://www.linkedin.com/in/ada/", out["linkedinUrl"])
	assert.NotContains(t, out, "headline")
}

func TestCleanProfileKeepFields(t *testing.T) {
	c := New(Options{KeepFields: []string{"email", "location"}}, logger.NewTestLogger())
	profile := parse(t, rawProfile)
	profile["location"] = map[string]interface{}{"city": "London", "urn": "urn:li:geo:1"}

	out := c.CleanProfile(profile)
	assert.NotContains(t, out, "email", "removal wins over keep")
	assert.Equal(t, map[string]interface{}{"city": "London"}, out["location"])
}

func TestRemoveFieldsRecursive(t *testing.T) {
	in := map[string]interface{}{
		"a":   1.0,
		"urn": "x",
		"nested": []interface{}{
			map[string]interface{}{"urn": "y", "keep": "z"},
		},
	}
	out := RemoveFields(in, map[string]struct{}{"urn": {}})
	assert.Equal(t, map[string]interface{}{
		"a":      1.0,
		"nested": []interface{}{map[string]interface{}{"keep": "z"}},
	}, out)
	assert.Contains(t, in, "urn", "input is not modified")
}

func TestCleanFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.json")
	output := filepath.Join(dir, "clean", "cleaned.json")

	raw := []interface{}{parse(t, rawProfile), map[string]interface{}{"fullName": "No URL"}}
	require.NoError(t, storage.WriteJSON(input, raw))

	var messages []string
	log := logger.NewTestLogger()
	res, err := New(Options{}, log).CleanFile(context.Background(), input, output, func(_, _ int, msg string) {
		messages = append(messages, msg)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalProfiles)
	assert.Equal(t, 1, res.ProfilesWithURL)
	assert.Len(t, messages, 2)
	assert.True(t, log.HasMessage("Some profiles have no linkedinUrl"))

	var cleaned []map[string]interface{}
	require.NoError(t, storage.ReadJSON(output, &cleaned))
	require.Len(t, cleaned, 2)
	assert.Equal(t, "Ada Lovelace", cleaned[0]["fullName"])
}

func TestCleanFileMissingInput(t *testing.T) {
	_, err := New(Options{}, logger.NewTestLogger()).CleanFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), "out.json", nil)
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
}
