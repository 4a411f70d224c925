package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"enricher/pkg/pipeline"
	"enricher/pkg/ui"
)

var (
	extractFields []string
	extractEvent  string
	extractTop100 bool
	extractPrefix string

	scrapeURLs      string
	scrapeOutput    string
	scrapeBatchSize int
	scrapeTest      bool
	scrapeTestURLs  int

	cleanInput  string
	cleanOutput string

	traitsInput  string
	traitsOutput string
	traitsMax    int
	traitsForce  bool
	traitsDelay  float64

	updateTraits  string
	updateMapping string
	updateDelay   float64

	fieldsDelay float64

	runStageNames   []string
	runCreateFields bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract LinkedIn URLs from the Airtable roster",
	Long: `Read every record matching the event and top-100 filters, pull the LinkedIn
URLs out of the configured fields and write the URL mapping, the URL list for
Apify and an extraction summary.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		req := pipeline.ExtractRequest{LinkedInFields: extractFields}
		if cmd.Flags().Changed("event") {
			req.EventFilter = &extractEvent
		}
		if cmd.Flags().Changed("top-100") {
			req.Top100Filter = &extractTop100
		}
		if cmd.Flags().Changed("output-prefix") {
			req.OutputPrefix = &extractPrefix
		}

		return runStages(cmd, cfg, "Extraction", []string{pipeline.StageExtract}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Extract(ctx, req, rep)
			})
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape LinkedIn profiles through Apify",
	Long: `Send the extracted URLs to the Apify profile scraper in batches. Completed
batches are checkpointed, so a rerun only scrapes what is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		req := pipeline.ScrapeRequest{
			URLsFile:    scrapeURLs,
			OutputFile:  scrapeOutput,
			BatchSize:   scrapeBatchSize,
			TestNumURLs: scrapeTestURLs,
		}
		if cmd.Flags().Changed("test") {
			req.TestMode = &scrapeTest
		}

		return runStages(cmd, cfg, "Apify processing", []string{pipeline.StageScrape}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Scrape(ctx, req, rep)
			})
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Reduce scraped profiles to the fields trait extraction needs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		req := pipeline.CleanRequest{InputFile: cleanInput, OutputFile: cleanOutput}
		return runStages(cmd, cfg, "Data cleaning", []string{pipeline.StageClean}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Clean(ctx, req, rep)
			})
	},
}

var traitsCmd = &cobra.Command{
	Use:   "traits",
	Short: "Extract founder traits from cleaned profiles with the LLM",
	Long: `Ask the model for the trait schema of every cleaned profile that has a
LinkedIn URL. Each profile is checkpointed as soon as it is extracted.

Use --max-profiles to cap a session and --force to start over.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		req := traitsRequest(cmd)
		return runStages(cmd, cfg, "Trait extraction", []string{pipeline.StageTraits}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Traits(ctx, req, rep)
			})
	},
}

var traitsProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show how many profiles still need trait extraction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		stats, err := pipeline.New(cfg).TraitsProgress(pipeline.TraitsRequest{InputFile: traitsInput, OutputFile: traitsOutput})
		if err != nil {
			return err
		}
		ui.PrintSummary("Trait extraction progress", map[string]interface{}{
			"total_profiles":           stats.TotalProfiles,
			"valid_profiles_with_urls": stats.ValidProfilesWithURL,
			"processed_profiles":       stats.ProcessedProfiles,
			"remaining_profiles":       stats.RemainingProfiles,
			"completion_percentage":    stats.CompletionPercentage,
		})
		if cp := stats.Checkpoint; cp.Exists {
			ui.PrintInfo("Checkpoint", fmt.Sprintf("%s (%d ids, updated %s)", cp.Path, cp.ProcessedIDs, cp.LastUpdated))
		} else {
			ui.PrintInfo("Checkpoint", "none at "+cp.Path)
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Write extracted traits back to Airtable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		req := pipeline.UpdateRequest{TraitsFile: updateTraits, URLMappingFile: updateMapping}
		if cmd.Flags().Changed("delay") {
			req.DelayBetweenUpdates = &updateDelay
		}
		return runStages(cmd, cfg, "Airtable update", []string{pipeline.StageUpdate}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Update(ctx, req, rep)
			})
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Create the AI_* trait columns in the Airtable table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		var req pipeline.FieldsRequest
		if cmd.Flags().Changed("delay") {
			req.DelayBetweenFields = &fieldsDelay
		}
		return runStages(cmd, cfg, "Field creation", []string{"fields"}, true,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.Fields(ctx, req, rep)
			})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline stages in order",
	Long: `Run extract, scrape, clean, traits and update one after another, stopping
at the first stage that fails. Rerunning resumes every stage from its
checkpoint.`,
	Example: `  # Everything
  enricher run

  # Only the LLM and write-back stages, with the dashboard
  enricher run --stages traits,update --create-fields --tui`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range runStageNames {
			if !isStage(s) {
				ui.PrintWarning("Unknown stage " + s + " is ignored")
			}
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		stages := selectedStages(runStageNames)
		if len(stages) == 0 {
			return fmt.Errorf("no known stages in %v", runStageNames)
		}
		req := pipeline.RunRequest{Stages: stages, CreateFields: runCreateFields}
		return runStages(cmd, cfg, "Pipeline run", stages, false,
			func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error) {
				return p.RunAll(ctx, req, rep)
			})
	},
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractFields, "field", nil, "LinkedIn field to read (repeatable)")
	extractCmd.Flags().StringVar(&extractEvent, "event", "", "only records whose event matches")
	extractCmd.Flags().BoolVar(&extractTop100, "top-100", true, "only records flagged top 100")
	extractCmd.Flags().StringVar(&extractPrefix, "output-prefix", "", "prefix for the extraction files")

	scrapeCmd.Flags().StringVar(&scrapeURLs, "urls-file", "", "URL list to scrape")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "profiles output file")
	scrapeCmd.Flags().IntVar(&scrapeBatchSize, "batch-size", 0, "URLs per Apify run")
	scrapeCmd.Flags().BoolVar(&scrapeTest, "test", false, "scrape only the first few URLs")
	scrapeCmd.Flags().IntVar(&scrapeTestURLs, "test-urls", 0, "URLs to scrape in test mode")

	cleanCmd.Flags().StringVarP(&cleanInput, "input", "i", "", "scraped profiles file")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "cleaned profiles file")

	for _, c := range []*cobra.Command{traitsCmd, traitsProgressCmd} {
		c.Flags().StringVarP(&traitsInput, "input", "i", "", "cleaned profiles file")
		c.Flags().StringVarP(&traitsOutput, "output", "o", "", "traits output file")
	}
	traitsCmd.Flags().IntVar(&traitsMax, "max-profiles", 0, "profiles to extract this session (-1 for all)")
	traitsCmd.Flags().BoolVar(&traitsForce, "force", false, "discard previous results and start over")
	traitsCmd.Flags().Float64Var(&traitsDelay, "delay", 0, "seconds between model calls")
	traitsCmd.AddCommand(traitsProgressCmd)

	updateCmd.Flags().StringVar(&updateTraits, "traits-file", "", "traits file to write back")
	updateCmd.Flags().StringVar(&updateMapping, "mapping-file", "", "URL to record mapping file")
	updateCmd.Flags().Float64Var(&updateDelay, "delay", 0, "seconds between record updates")

	fieldsCmd.Flags().Float64Var(&fieldsDelay, "delay", 0, "seconds between field creations")

	runCmd.Flags().StringSliceVar(&runStageNames, "stages", nil, "stages to run (default all)")
	runCmd.Flags().BoolVar(&runCreateFields, "create-fields", false, "create the AI_* fields before updating")

	rootCmd.AddCommand(extractCmd, scrapeCmd, cleanCmd, traitsCmd, updateCmd, fieldsCmd, runCmd)
}

func traitsRequest(cmd *cobra.Command) pipeline.TraitsRequest {
	req := pipeline.TraitsRequest{InputFile: traitsInput, OutputFile: traitsOutput}
	if cmd.Flags().Changed("max-profiles") {
		req.MaxProfiles = &traitsMax
	}
	if cmd.Flags().Changed("force") {
		req.ForceReextraction = &traitsForce
	}
	if cmd.Flags().Changed("delay") {
		req.DelayBetweenCalls = &traitsDelay
	}
	return req
}

func isStage(name string) bool {
	for _, s := range pipeline.Stages {
		if s == name {
			return true
		}
	}
	return false
}

// selectedStages keeps the known names in pipeline order; none means all.
func selectedStages(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, s := range pipeline.Stages {
		if len(names) == 0 || want[s] {
			out = append(out, s)
		}
	}
	return out
}
