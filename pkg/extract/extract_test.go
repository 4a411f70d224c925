package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"enricher/pkg/airtable"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages [][]airtable.Record
}

func (f *fakeSource) Iterate(ctx context.Context, opts airtable.ListOptions, fn func([]airtable.Record) error) error {
	for _, p := range f.pages {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

type cancelled bool

func (c cancelled) Cancelled() bool { return bool(c) }

func record(id string, fields map[string]interface{}) airtable.Record {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return airtable.Record{ID: id, Fields: fields}
}

func s25(url interface{}) map[string]interface{} {
	f := map[string]interface{}{"Event": "S25", "Top 100": true}
	if url != nil {
		f["4. CEO LinkedIn"] = url
	}
	return f
}

func testOptions(t *testing.T) Options {
	top := true
	return Options{
		EventFilter:  "S25",
		Top100Filter: &top,
		Paths:        config.PathsConfig{Prefix: "T", ExtractionDir: filepath.Join(t.TempDir(), "extractions")},
	}
}

func TestCleanProfileURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.linkedin.com/in/ada", "https://www.linkedin.com/in/ada/"},
		{"https://linkedin.com/in/ada/?utm_source=x#top", "https://linkedin.com/in/ada/"},
		{"  http://linkedin.com/in/ada-l/  ", "http://linkedin.com/in/ada-l/"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanProfileURL(tt.in), tt.in)
	}
}

func TestCanonicalProfileURL(t *testing.T) {
	assert.Equal(t, "https://linkedin.com/in/ada/", CanonicalProfileURL("https://www.LinkedIn.com/in/Ada?trk=x"))
	assert.Equal(t, CanonicalProfileURL("https://linkedin.com/in/ada/"), CanonicalProfileURL(" https://www.linkedin.com/in/ada "))
}

func TestIsValidProfileURL(t *testing.T) {
	assert.True(t, IsValidProfileURL("https://www.linkedin.com/in/ada-lovelace/"))
	assert.True(t, IsValidProfileURL("HTTP://LinkedIn.com/in/ada_1"))
	assert.True(t, IsValidProfileURL("https://linkedin.com/in/ada/?trk=x"))
	assert.False(t, IsValidProfileURL("https://linkedin.com/company/acme/"))
	assert.False(t, IsValidProfileURL("https://uk.linkedin.com/in/ada/"))
	assert.False(t, IsValidProfileURL("linkedin.com/in/ada/"))
	assert.False(t, IsValidProfileURL("https://linkedin.com/in/ada/posts/"))
	assert.False(t, IsValidProfileURL(""))
}

func TestFirstValidProfileURL(t *testing.T) {
	text := "https://acme.com, https://linkedin.com/in/ada/posts | https://www.linkedin.com/in/grace?x=1;https://linkedin.com/in/alan"
	assert.Equal(t, "https://www.linkedin.com/in/grace/", FirstValidProfileURL(text))
	assert.Equal(t, []string{"https://linkedin.com/in/ada/posts", "https://www.linkedin.com/in/grace?x=1", "https://linkedin.com/in/alan"}, Candidates(text))
	assert.Equal(t, "", FirstValidProfileURL("no links here"))
}

func TestFieldURL(t *testing.T) {
	assert.Equal(t, "https://linkedin.com/in/ada/", FieldURL("https://linkedin.com/in/ada"))
	assert.Equal(t, "https://linkedin.com/in/ada/", FieldURL([]interface{}{"https://linkedin.com/in/ada", "https://linkedin.com/in/bob"}))
	assert.Equal(t, "", FieldURL([]interface{}{"n/a", "https://linkedin.com/in/bob"}))
	assert.Equal(t, "", FieldURL([]interface{}{}))
	assert.Equal(t, "", FieldURL(42.0))
}

func TestRunFiltersAndMaps(t *testing.T) {
	src := &fakeSource{pages: [][]airtable.Record{
		{
			record("rec1", s25("https://www.linkedin.com/in/ada?trk=1")),
			record("rec2", map[string]interface{}{"Event": "W24", "Top 100": true, "4. CEO LinkedIn": "https://linkedin.com/in/skip"}),
			record("rec3", s25("https://acme.com")),
		},
		{
			record("rec4", s25("https://www.linkedin.com/in/ada/")),
			record("rec5", map[string]interface{}{"Event": "S25", "4. CEO LinkedIn": "https://linkedin.com/in/notop"}),
			record("rec6", s25([]interface{}{"https://linkedin.com/in/grace"})),
		},
	}}

	log := logger.NewTestLogger()
	opts := testOptions(t)
	res, err := New(src, opts, log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.TotalRecords)
	assert.Equal(t, 2, res.ValidURLs)
	assert.Equal(t, 1, res.MissingURLs)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.InvalidURLs)
	assert.InDelta(t, 50.0, res.SuccessRate, 1e-9)
	assert.Equal(t, []string{"https://www.linkedin.com/in/ada/", "https://linkedin.com/in/grace/"}, res.URLsForApify)
	assert.Equal(t, "rec1", res.URLToRecord["https://www.linkedin.com/in/ada/"])
	assert.True(t, log.HasMessage("Duplicate URL"))

	require.Len(t, res.FilesCreated, 3)
	urls, err := LoadURLs(opts.Paths.URLsFile())
	require.NoError(t, err)
	assert.Equal(t, res.URLsForApify, urls)

	mapping, err := LoadMapping(opts.Paths.URLMappingFile())
	require.NoError(t, err)
	assert.Equal(t, res.URLToRecord, mapping)

	var report Report
	require.NoError(t, storage.ReadJSON(opts.Paths.ExtractionResultsFile(), &report))
	assert.Equal(t, Summary{TotalValidURLs: 2, TotalMissingURLs: 1}, report.Summary)
	assert.Equal(t, MissingReason, report.MissingURLRecords["rec3"])
	assert.NotNil(t, report.InvalidURLs)
}

func TestRunTriesFieldsInOrder(t *testing.T) {
	src := &fakeSource{pages: [][]airtable.Record{{
		record("rec1", map[string]interface{}{"CEO": "none", "CTO": "https://linkedin.com/in/cto"}),
	}}}
	opts := testOptions(t)
	opts.EventFilter = ""
	opts.Top100Filter = nil
	opts.LinkedInFields = []string{"CEO", "CTO"}

	res, err := New(src, opts, logger.NewTestLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://linkedin.com/in/cto/"}, res.URLsForApify)
}

func TestRunReportsProgressEveryTenRecords(t *testing.T) {
	var page []airtable.Record
	for i := 0; i < 25; i++ {
		page = append(page, record(fmt.Sprintf("rec%d", i), s25(fmt.Sprintf("https://linkedin.com/in/p%d", i))))
	}

	type call struct {
		current, total int
		msg            string
	}
	var calls []call
	opts := testOptions(t)
	opts.OnProgress = func(current, total int, msg string) { calls = append(calls, call{current, total, msg}) }

	_, err := New(&fakeSource{pages: [][]airtable.Record{page}}, opts, logger.NewTestLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []call{
		{10, -1, "Processing record 10"},
		{20, -1, "Processing record 20"},
		{25, 25, "Extraction completed, saving results..."},
	}, calls)
}

func TestRunCancelled(t *testing.T) {
	opts := testOptions(t)
	opts.Token = cancelled(true)
	_, err := New(&fakeSource{pages: [][]airtable.Record{{record("rec1", s25("https://linkedin.com/in/a"))}}}, opts, logger.NewTestLogger()).Run(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
	assert.False(t, storage.Exists(opts.Paths.URLsFile()))
}

func TestLoadMissingInput(t *testing.T) {
	_, err := LoadURLs(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
}
