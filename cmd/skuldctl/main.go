package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	wyrd "github.com/sre-norns/wyrd/pkg/grace"

	"github.com/sre-norns/skuld/pkg/grace"
	"github.com/sre-norns/skuld/pkg/runner"
)

type commandContext struct {
	*runner.Config

	OutputFormatter formatter
	Context         context.Context
	Logger          log.Logger
}

type outputFormat string

func (f outputFormat) AfterApply(cfg *commandContext) (err error) {
	cfg.OutputFormatter, err = getFormatter(f)
	return err
}

type logLevel string

func (l logLevel) AfterApply(cfg *commandContext) error {
	cfg.Logger = newLogger(string(l))
	return nil
}

type noColorFlag bool

func (f noColorFlag) AfterApply() error {
	if f {
		color.NoColor = true
	}
	return nil
}

var appCli struct {
	runner.Config

	Format   outputFormat `help:"Data output format" enum:"table,yaml,yml,json" default:"table" short:"o"`
	LogLevel logLevel     `help:"Minimal level of log messages written to stderr" enum:"debug,info,warn,error" default:"info" env:"SKULD_LOG_LEVEL"`
	NoColor  noColorFlag  `help:"Disable colored output" env:"NO_COLOR"`

	Run     RunCmd     `cmd:"" help:"Load the catalog with and without filtering and compare page load times"`
	Compare CompareCmd `cmd:"" help:"Compare page load times recorded in two HAR files"`
	Catalog CatalogCmd `cmd:"" help:"Print the URLs a run would load"`
}

func allowLevel(minLevel string) level.Option {
	switch minLevel {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	}

	return level.AllowInfo()
}

func newLogger(minLevel string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, allowLevel(minLevel))

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// loadDotEnv reads SKULD_* settings from a .env file in the working directory, if there is one.
func loadDotEnv(logger log.Logger) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		level.Warn(logger).Log("msg", "failed to load .env file", "err", err)
	}
}

func main() {
	logger := newLogger("info")
	loadDotEnv(logger)

	appCli.Config = runner.NewDefaultConfig()
	cfg := &commandContext{
		Context:         wyrd.NewSignalHandlingContext(),
		OutputFormatter: tableFormatter,
		Config:          &appCli.Config,
		Logger:          logger,
	}
	appCtx := kong.Parse(&appCli,
		kong.Name("skuldctl"),
		kong.Description("Measure how much request filtering slows page loads down"),
		kong.Bind(cfg),
	)

	grace.ExitOrLog(cfg.Logger, appCtx.Run(cfg))
}
