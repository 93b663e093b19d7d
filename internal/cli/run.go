package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-coders/modelbench/internal/config"
	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/internal/server"
	"github.com/go-coders/modelbench/internal/sink"
	"github.com/go-coders/modelbench/internal/suite"
	"github.com/go-coders/modelbench/pkg/util"
)

var (
	categoryFlag    string
	retryFailedFlag bool
	serveFlag       bool
	workersFlag     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark suites",
	Long: "Runs the selected case suites against the configured API. With\n" +
		"--category all, the code suite maps to the first half of overall\n" +
		"progress and the image suite to the second half.",
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().StringVarP(&categoryFlag, "category", "c", "all", "suite to run: code, writing, image or all")
	runCmd.Flags().BoolVar(&retryFailedFlag, "retry-failed", false, "after each suite, retry failed cases once")
	runCmd.Flags().BoolVar(&serveFlag, "serve", false, "expose the status API while the run is in progress")
	runCmd.Flags().IntVar(&workersFlag, "workers", 0, "override the configured worker count")
	rootCmd.AddCommand(runCmd)
}

type runStep struct {
	category engine.Category
	window   engine.ProgressWindow
}

// runPlan maps the category flag to an ordered list of suites with their
// progress windows.
func runPlan(category string) ([]runStep, error) {
	switch category {
	case "all":
		return []runStep{
			{engine.CategoryCode, engine.ProgressWindow{Lo: 0, Hi: 50}},
			{engine.CategoryImage, engine.ProgressWindow{Lo: 50, Hi: 100}},
		}, nil
	case string(engine.CategoryCode):
		return []runStep{{engine.CategoryCode, engine.FullWindow}}, nil
	case string(engine.CategoryWriting):
		return []runStep{{engine.CategoryWriting, engine.FullWindow}}, nil
	case string(engine.CategoryImage):
		return []runStep{{engine.CategoryImage, engine.FullWindow}}, nil
	}
	return nil, errors.New("category must be code, writing, image or all")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workersFlag > 0 {
		cfg.Run.Workers = workersFlag
	}
	plan, err := runPlan(categoryFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snk, err := sink.NewDirSink(cfg.Run.OutputDir)
	if err != nil {
		return err
	}
	failures, err := engine.NewFailureLog(filepath.Join(cfg.Run.OutputDir, "logs"))
	if err != nil {
		return err
	}

	var obs engine.Observer = newConsoleObserver(printer)
	if serveFlag {
		status := server.NewStatus()
		srv := server.New(server.Config{
			Port:       cfg.Server.Port,
			Debug:      cfg.Debug,
			ResultsDir: snk.Root(),
		}, status)
		go srv.Start(ctx)
		<-srv.Ready()
		printer.Printf("status API listening on :%d\n", cfg.Server.Port)
		status.SetRunning(true)
		defer status.SetRunning(false)
		obs = teeObserver{obs, status}
	}

	transport := engine.NewTransport(engine.DefaultRequestTimeout + time.Minute)
	invoker := engine.NewChatInvoker(transport, engine.InvokerConfig{
		APIURL:         cfg.API.URL,
		APIKey:         cfg.API.Key,
		MaxTokens:      cfg.API.MaxTokens,
		EnableThinking: cfg.API.EnableThinking,
	}, failures, obs)
	runner := engine.NewRunner(invoker, snk, obs, engine.RunnerConfig{
		TextModel:  cfg.API.TextModel,
		ImageModel: cfg.API.ImageModel,
		Workers:    cfg.Run.Workers,
	})

	printer.PrintTitle("modelbench run", util.EmojiRocket)
	for _, step := range plan {
		if step.category == engine.CategoryImage && cfg.API.ImageModel == "" {
			printer.PrintWarning("api.image_model is empty, skipping the image suite")
			continue
		}
		cases, err := suite.Load(cfg.Run.CasesDir, string(step.category))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				printer.PrintWarning("no case file for " + string(step.category) + ", skipping")
				continue
			}
			return err
		}

		runner.Run(ctx, step.category, cases, step.window)
		if retryFailedFlag && ctx.Err() == nil {
			requireArtifact := step.category != engine.CategoryWriting
			if flipped := runner.RetryFailed(ctx, step.category, requireArtifact); flipped > 0 {
				printer.Printf("%s %d %s case(s) recovered on retry\n", util.EmojiRetry, flipped, step.category)
			}
		}
	}

	summary, err := runner.Summary(summaryConfig(cfg))
	if err != nil {
		return err
	}
	printSummary(printer, summary)

	if ctx.Err() != nil {
		printer.PrintWarning("run interrupted, partial results were kept")
	} else {
		printer.PrintSuccess("run finished, results in " + snk.Root())
	}
	return nil
}

// summaryConfig is the configuration echo embedded in the run summary so a
// results directory is self-describing.
func summaryConfig(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"api_url":     cfg.API.URL,
		"text_model":  cfg.API.TextModel,
		"image_model": cfg.API.ImageModel,
		"max_tokens":  cfg.API.MaxTokens,
		"workers":     cfg.Run.Workers,
	}
}
