package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"enricher/pkg/config"
	"enricher/pkg/logger"
	"enricher/pkg/pipeline"
	"enricher/pkg/ui"
	"enricher/pkg/ui/tui"
)

// reporter is what the console and dashboard both provide.
type reporter interface {
	pipeline.Reporter
	pipeline.StageObserver
}

// stageFunc runs a command's work against one pipeline.
type stageFunc func(ctx context.Context, p *pipeline.Pipeline, rep pipeline.Reporter) (interface{}, error)

// runStages executes fn with a console or dashboard reporter and prints the
// result. With observe set, the boundaries of the single stage are reported
// here; RunAll reports its own.
func runStages(cmd *cobra.Command, cfg *config.Config, what string, stages []string, observe bool, fn stageFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, pipeline.WithLogger(logger.GetLogger()))
	single := observe && len(stages) == 1

	run := func(ctx context.Context, rep reporter) (interface{}, error) {
		if single {
			rep.StageStarted(stages[0])
		}
		result, err := fn(ctx, p, rep)
		if single {
			rep.StageFinished(stages[0], err)
		}
		return result, err
	}

	var (
		result interface{}
		err    error
	)
	if useTUI {
		result, err = runWithDashboard(ctx, stages, run)
	} else {
		result, err = run(ctx, ui.NewConsole(ctx, os.Stdout, cfg.Logging.Level == "debug"))
	}

	if notify {
		ui.NewNotifier().RunFinished(what, err)
	}
	if err != nil {
		return err
	}

	if !quiet {
		if all, ok := result.(map[string]interface{}); ok && !observe {
			for _, stage := range pipeline.Stages {
				if r, ok := all["fields"]; ok && stage == pipeline.StageUpdate {
					printResult("fields", r)
				}
				if r, ok := all[stage]; ok {
					printResult(stage, r)
				}
			}
		} else {
			printResult(what, result)
		}
		ui.PrintSuccess(what + " completed")
	}
	return nil
}

func runWithDashboard(ctx context.Context, stages []string, run func(context.Context, reporter) (interface{}, error)) (interface{}, error) {
	dash := tui.New(ctx, stages)

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := run(dash.Context(), dash)
		dash.Finish(err)
		done <- outcome{result, err}
	}()

	if err := dash.Run(); err != nil {
		logger.WithError(err).Warn("Dashboard stopped")
	}
	out := <-done
	return out.result, out.err
}

// printResult prints the scalar fields of a stage result; lists and maps
// are shown by size.
func printResult(title string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return
	}

	summary := make(map[string]interface{}, len(fields))
	for k, val := range fields {
		switch x := val.(type) {
		case []interface{}:
			summary[k] = len(x)
		case map[string]interface{}:
			summary[k] = len(x)
		default:
			summary[k] = x
		}
	}
	ui.PrintSummary(title, summary)
}
