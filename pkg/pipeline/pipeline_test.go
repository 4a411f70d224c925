package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enricher/pkg/airtable"
	"enricher/pkg/apify"
	"enricher/pkg/config"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/storage"
	"enricher/pkg/traits"
	"enricher/pkg/updater"
)

type fakeTable struct {
	mu      sync.Mutex
	records []airtable.Record
	updates map[string]map[string]interface{}
	created []string
}

func (f *fakeTable) Iterate(ctx context.Context, opts airtable.ListOptions, fn func([]airtable.Record) error) error {
	return fn(f.records)
}

func (f *fakeTable) Update(ctx context.Context, id string, fields map[string]interface{}) (*airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[string]map[string]interface{}{}
	}
	f.updates[id] = fields
	return &airtable.Record{ID: id, Fields: fields}, nil
}

func (f *fakeTable) CreateField(ctx context.Context, spec airtable.FieldSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, spec.Name)
	return nil
}

// fakeScraper echoes each URL back without www and trailing slash, the way
// the actor normalises them.
type fakeScraper struct {
	batches [][]string
	failOn  int
}

func (f *fakeScraper) Submit(ctx context.Context, urls []string) ([]apify.Profile, error) {
	f.batches = append(f.batches, urls)
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return nil, errs.FromStatusCode(502, "actor run failed")
	}
	out := make([]apify.Profile, 0, len(urls))
	for _, u := range urls {
		echoed := strings.TrimSuffix(strings.Replace(u, "://www.", "://", 1), "/")
		slug := echoed[strings.LastIndex(echoed, "/")+1:]
		out = append(out, apify.Profile{
			"linkedinUrl": echoed,
			"fullName":    strings.ToUpper(slug),
			"profilePic":  "https://media.licdn.com/x.jpg",
		})
	}
	return out, nil
}

type fakeModel struct{}

func (fakeModel) Complete(ctx context.Context, system, doc string) (json.RawMessage, error) {
	var p map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, err
	}
	if _, leaked := p["profilePic"]; leaked {
		return nil, errs.New(errs.ErrorTypeMalformed, "uncleaned profile")
	}
	return json.RawMessage(`{"full_name": "` + p["fullName"].(string) + `", "confidence_score": "High"}`), nil
}

type recordingReporter struct {
	*LogReporter
	mu       sync.Mutex
	messages []string
}

func newReporter() *recordingReporter {
	return &recordingReporter{LogReporter: NewLogReporter(context.Background(), logger.NewNopLogger())}
}

func (r *recordingReporter) Progress(current, total int, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingReporter) has(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Paths.ExtractionDir = filepath.Join(dir, "extract")
	cfg.Paths.ProfilesDir = filepath.Join(dir, "profiles")
	cfg.Paths.CleanedDir = filepath.Join(dir, "cleaned")
	cfg.Paths.TraitsDir = filepath.Join(dir, "traits")
	cfg.Apify.BatchSize = 2
	cfg.Apify.BatchDelay = 0
	cfg.Traits.Delay = 0
	cfg.Traits.BackoffBase = 1
	cfg.Updater.Delay = 0
	cfg.Updater.FieldDelay = 0
	return cfg
}

func roster() *fakeTable {
	row := func(id, url string, event string) airtable.Record {
		return airtable.Record{ID: id, Fields: map[string]interface{}{
			"Event":           event,
			"Top 100":         true,
			"4. CEO LinkedIn": url,
		}}
	}
	return &fakeTable{records: []airtable.Record{
		row("rec1", "https://www.linkedin.com/in/ada?trk=x", "S25"),
		row("rec2", "https://linkedin.com/in/bob", "S25"),
		row("rec3", "https://linkedin.com/in/cy", "S25"),
		row("rec4", "https://linkedin.com/in/old", "W24"),
	}}
}

func TestRunAll(t *testing.T) {
	cfg := testConfig(t)
	table := roster()
	scraper := &fakeScraper{}
	p := New(cfg, WithTable(table), WithScraper(scraper), WithModel(fakeModel{}), WithLogger(logger.NewNopLogger()))

	rep := newReporter()
	results, err := p.RunAll(context.Background(), RunRequest{CreateFields: true}, rep)
	require.NoError(t, err)

	scrape := results[StageScrape].(*ScrapeResult)
	assert.Equal(t, 3, scrape.TotalURLs)
	assert.Equal(t, 3, scrape.NewProfiles)
	assert.Equal(t, 2, scrape.Batches)
	assert.Empty(t, scrape.MissingURLs, "echoed URLs match their canonical unit ids")
	assert.Equal(t, [][]string{
		{"https://www.linkedin.com/in/ada/", "https://linkedin.com/in/bob/"},
		{"https://linkedin.com/in/cy/"},
	}, scraper.batches)

	tr := results[StageTraits].(*traits.Result)
	assert.Equal(t, 3, tr.NewProfiles)

	up := results[StageUpdate].(*updater.Result)
	assert.Equal(t, 3, up.SuccessfulUpdates)
	assert.Equal(t, 0, up.MissingMappings)
	assert.Equal(t, "ADA", table.updates["rec1"]["AI_Full_Name"])
	assert.Equal(t, "High", table.updates["rec3"]["AI_Confidence_Score"])

	assert.Len(t, table.created, len(traits.Columns))
	assert.True(t, rep.has("Loaded 3 URLs from"))

	// A second run finds everything done and makes no external calls.
	_, err = p.RunAll(context.Background(), RunRequest{Stages: []string{StageScrape, StageTraits}}, newReporter())
	require.NoError(t, err)
	assert.Len(t, scraper.batches, 2)
}

func TestScrapeAbortKeepsCommittedBatches(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, WithTable(roster()), WithScraper(&fakeScraper{failOn: 2}), WithLogger(logger.NewNopLogger()))
	_, err := p.Extract(context.Background(), ExtractRequest{}, newReporter())
	require.NoError(t, err)

	res, err := p.Scrape(context.Background(), ScrapeRequest{}, newReporter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2 of 2 failed")
	assert.Equal(t, 2, res.NewProfiles)

	saved, err := storage.NewAccumulator[apify.Profile](cfg.Paths.ProfilesFile()).Load()
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestScrapeTestMode(t *testing.T) {
	cfg := testConfig(t)
	scraper := &fakeScraper{}
	p := New(cfg, WithTable(roster()), WithScraper(scraper), WithLogger(logger.NewNopLogger()))
	_, err := p.Extract(context.Background(), ExtractRequest{}, newReporter())
	require.NoError(t, err)

	on := true
	res, err := p.Scrape(context.Background(), ScrapeRequest{TestMode: &on, TestNumURLs: 1}, newReporter())
	require.NoError(t, err)
	assert.True(t, res.TestMode)
	assert.Equal(t, 1, res.TotalURLs)
	assert.Equal(t, cfg.Paths.TestProfilesFile(1), res.OutputFile)
}

func TestExtractRequestOverrides(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, WithTable(roster()), WithLogger(logger.NewNopLogger()))

	event := "W24"
	prefix := "W24_"
	res, err := p.Extract(context.Background(), ExtractRequest{EventFilter: &event, OutputPrefix: &prefix}, newReporter())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ValidURLs)
	assert.FileExists(t, filepath.Join(cfg.Paths.ExtractionDir, "W24_airtable_url_mapping.json"))
}

func TestStagesNeedCredentials(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, WithLogger(logger.NewNopLogger()))

	_, err := p.Extract(context.Background(), ExtractRequest{}, newReporter())
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))

	require.NoError(t, storage.WriteJSON(cfg.Paths.URLsFile(), []string{"https://linkedin.com/in/a/"}))
	_, err = p.Scrape(context.Background(), ScrapeRequest{}, newReporter())
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(testConfig(t), WithLogger(logger.NewNopLogger()))
	_, err := p.RunAll(ctx, RunRequest{}, NewLogReporter(ctx, logger.NewNopLogger()))
	assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
}

type stageRecorder struct {
	*recordingReporter
	events []string
}

func (r *stageRecorder) StageStarted(stage string) { r.events = append(r.events, "start "+stage) }

func (r *stageRecorder) StageFinished(stage string, err error) {
	if err != nil {
		r.events = append(r.events, "fail "+stage)
		return
	}
	r.events = append(r.events, "done "+stage)
}

func TestRunAllNotifiesStageObserver(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, WithTable(roster()), WithScraper(&fakeScraper{failOn: 1}), WithLogger(logger.NewNopLogger()))

	rep := &stageRecorder{recordingReporter: newReporter()}
	_, err := p.RunAll(context.Background(), RunRequest{Stages: []string{StageExtract, StageScrape, StageClean}}, rep)
	require.Error(t, err)
	assert.Equal(t, []string{"start extract", "done extract", "start scrape", "fail scrape"}, rep.events)
}

func TestRunAllOmitsResultOfStageThatFailedEarly(t *testing.T) {
	p := New(testConfig(t), WithScraper(&fakeScraper{}), WithLogger(logger.NewNopLogger()))

	results, err := p.RunAll(context.Background(), RunRequest{Stages: []string{StageScrape}}, newReporter())
	require.Error(t, err)
	assert.NotContains(t, results, StageScrape)
	assert.Empty(t, results)
}
