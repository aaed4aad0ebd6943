// Command linkaudit checks, repairs and analyzes the compliance links of a tool spreadsheet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/browser"
	"github.com/docutag/linkaudit/config"
	"github.com/docutag/linkaudit/llm"
	"github.com/docutag/linkaudit/report"
	"github.com/docutag/linkaudit/sheet"
	"github.com/docutag/linkaudit/slug"
	"github.com/docutag/linkaudit/tracing"
)

// CLI is the command line
type CLI struct {
	Config    string `help:"Config file (.toml, .yaml or .yml)." type:"path" env:"LINKAUDIT_CONFIG"`
	EnvFile   string `help:"Dotenv file loaded before the environment is read." default:".env" name:"env-file"`
	LogLevel  string `help:"Log level." default:"info" enum:"debug,info,warn,error" name:"log-level"`
	LogFormat string `help:"Log format." default:"text" enum:"text,json" name:"log-format"`
	Progress  bool   `help:"Show a progress spinner." negatable:"" default:"true"`

	Check   CheckCmd   `cmd:"" help:"Validate every link and add a result row after each tool."`
	Repair  RepairCmd  `cmd:"" help:"Replace broken links with candidates from the tool's homepage."`
	Analyze AnalyzeCmd `cmd:"" help:"Validate links and ask a language model whether each page fits its column."`
}

// RunFlags are shared by every subcommand
type RunFlags struct {
	CSV     string `arg:"" help:"Semicolon-separated tool spreadsheet." type:"existingfile"`
	Start   int    `help:"First line to process (1-indexed)." default:"1"`
	End     int    `help:"Last line to process, inclusive (0 processes to the end)." default:"0"`
	Output  string `help:"Output file (defaults to <input>_<mode>.csv next to the input)." short:"o"`
	Browser bool   `help:"Validate and fetch through headless Chrome first."`
	Delay   string `help:"Pause after every network call, e.g. 500ms (0 disables)."`
	Timeout string `help:"Per-request timeout, e.g. 10s."`
}

// LLMFlags select the language model for content analysis
type LLMFlags struct {
	Provider string `help:"LLM provider: ollama, openai, claude or gemini." env:"LINKAUDIT_LLM_PROVIDER"`
	Model    string `help:"Model name (provider default when empty)."`
	LLMURL   string `help:"Base URL of the LLM API (Ollama server, OpenAI-compatible endpoint)." name:"llm-url"`
}

// CheckCmd validates links
type CheckCmd struct {
	RunFlags
}

// Run implements the check command
func (c *CheckCmd) Run(app *App) error {
	_, err := app.run(c.RunFlags, linkaudit.ModeCheck, "checked")
	return err
}

// RepairCmd repairs links
type RepairCmd struct {
	RunFlags
	ReportPrefix string `help:"Prefix of the results log names (defaults to the input file name)." name:"report-prefix"`
	NoReport     bool   `help:"Do not write the results log." name:"no-report"`
}

// Run implements the repair command
func (c *RepairCmd) Run(app *App) error {
	res, err := app.run(c.RunFlags, linkaudit.ModeRepair, "updated")
	if c.NoReport || len(res.Repairs) == 0 {
		return err
	}

	logger := report.NewLogger()
	logger.LogBatch(res)

	sink, sinkErr := app.cfg.Sink(app.ctx)
	if sinkErr != nil {
		app.logger.Error("failed to open report storage", "error", sinkErr)
		return firstErr(err, sinkErr)
	}
	prefix := c.ReportPrefix
	if prefix == "" {
		prefix = slug.FromFilename(c.CSV)
	}
	// The log is saved even after an interrupted run.
	saved, saveErr := logger.Save(context.WithoutCancel(app.ctx), sink, prefix)
	if saveErr != nil {
		app.logger.Error("failed to save results log", "error", saveErr)
		return firstErr(err, saveErr)
	}

	summary := logger.Log().Summary
	app.logger.Info("results log saved",
		"json", sink.GetFullPath(saved.JSONKey),
		"text", sink.GetFullPath(saved.TextKey),
		"run_id", summary.RunID,
		"processed", summary.TotalProcessed,
		"changed", summary.TotalChanged,
		"unchanged", summary.TotalUnchanged,
	)
	return err
}

// AnalyzeCmd validates links and analyzes content
type AnalyzeCmd struct {
	RunFlags
	LLMFlags
}

// Run implements the analyze command
func (c *AnalyzeCmd) Run(app *App) error {
	if c.Provider != "" {
		app.cfg.LLM.Provider = c.Provider
	}
	if c.Model != "" {
		app.cfg.LLM.Model = c.Model
	}
	if c.LLMURL != "" {
		app.cfg.LLM.BaseURL = c.LLMURL
	}

	client, err := llm.NewClient(app.ctx, app.cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	if ollama, ok := client.(*llm.OllamaClient); ok {
		if err := ollama.Available(app.ctx); err != nil {
			app.logger.Warn("ollama not ready, verdicts will come back Unclear", "model", ollama.Model(), "error", err)
		}
	}
	app.completer = client

	_, err = app.run(c.RunFlags, linkaudit.ModeAnalyze, "analyzed")
	return err
}

// App carries what every command needs
type App struct {
	ctx       context.Context
	cfg       *config.Config
	logger    *slog.Logger
	progress  bool
	completer linkaudit.Completer
}

// run executes one batch mode over the spreadsheet, writing the output after every tool
func (app *App) run(flags RunFlags, mode linkaudit.Mode, suffix string) (linkaudit.BatchResult, error) {
	if err := app.applyFlags(flags); err != nil {
		return linkaudit.BatchResult{}, err
	}

	input, err := sheet.ReadFile(flags.CSV)
	if err != nil {
		return linkaudit.BatchResult{}, fmt.Errorf("failed to read input: %w", err)
	}
	output := flags.Output
	if output == "" {
		output = sheet.OutputPath(flags.CSV, suffix)
	}
	app.logger.Info("starting",
		"mode", mode,
		"input", flags.CSV,
		"output", output,
		"tools", len(input.Records),
		"start", flags.Start,
		"end", flags.End,
	)

	opts := []linkaudit.Option{
		linkaudit.WithLogger(app.logger),
		linkaudit.WithObserver(logObserver{logger: app.logger}),
	}
	if app.completer != nil {
		opts = append(opts, linkaudit.WithCompleter(app.completer))
	}
	if app.cfg.Browser.Enabled {
		b, err := browser.New(app.cfg.BrowserSettings())
		if err != nil {
			app.logger.Warn("headless browser unavailable, continuing with plain HTTP", "error", err)
		} else {
			defer b.Close()
			opts = append(opts, linkaudit.WithBrowser(b, b))
		}
	}

	var progress *progressObserver
	if app.progress {
		progress = newProgressObserver(os.Stderr, batchSize(flags.Start, flags.End, len(input.Records)))
		opts = append(opts, linkaudit.WithObserver(progress))
		progress.Start()
	}

	auditor := linkaudit.New(app.cfg.Auditor(), opts...)
	res, runErr := auditor.RunBatch(app.ctx, input.Records, linkaudit.BatchOptions{
		Mode:  mode,
		Start: flags.Start,
		End:   flags.End,
		Checkpoint: func(rows []*linkaudit.ToolRecord) error {
			return sheet.WriteFile(output, input.Header, rows)
		},
	})
	if progress != nil {
		progress.Stop()
	}

	if err := sheet.WriteFile(output, input.Header, res.Rows); err != nil {
		return res, fmt.Errorf("failed to write output: %w", err)
	}

	app.logger.Info("finished",
		"mode", mode,
		"processed", res.Processed,
		"changed", res.Changed,
		"duration", res.Duration.Round(time.Millisecond),
		"output", output,
	)
	if runErr != nil {
		return res, fmt.Errorf("batch stopped early: %w", runErr)
	}
	return res, nil
}

// applyFlags overrides configured values with command line flags
func (app *App) applyFlags(flags RunFlags) error {
	if flags.Delay != "" {
		if err := app.cfg.HTTP.Delay.UnmarshalText([]byte(flags.Delay)); err != nil {
			return fmt.Errorf("--delay: %w", err)
		}
	}
	if flags.Timeout != "" {
		if err := app.cfg.HTTP.Timeout.UnmarshalText([]byte(flags.Timeout)); err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
	}
	if flags.Browser {
		app.cfg.Browser.Enabled = true
	}
	return nil
}

// batchSize is the number of tools a run will process
func batchSize(start, end, total int) int {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if end < start {
		return 0
	}
	return end - start + 1
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the console logger: charmbracelet/log behind slog
func newLogger(level, format string) (*slog.Logger, error) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := charmlog.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}
	if format == "json" {
		opts.Formatter = charmlog.JSONFormatter
	}
	return slog.New(charmlog.NewWithOptions(os.Stderr, opts)), nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("linkaudit"),
		kong.Description("Audit the privacy and compliance links of a tool inventory."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(cli.LogLevel, cli.LogFormat)
	kctx.FatalIfErrorf(err)
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(cli.EnvFile); err != nil {
		logger.Warn("failed to load env file", "path", cli.EnvFile, "error", err)
	}

	cfg, err := config.Load(cli.Config)
	kctx.FatalIfErrorf(err)
	kctx.FatalIfErrorf(cfg.ApplyEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tracing.Enabled() {
		tp, err := tracing.InitTracer("linkaudit")
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("error shutting down tracer", "error", err)
				}
			}()
		}
	}

	app := &App{ctx: ctx, cfg: cfg, logger: logger, progress: cli.Progress}
	if err := kctx.Run(app); err != nil {
		logger.Error("linkaudit failed", "error", err)
		stop()
		os.Exit(1)
	}
}
